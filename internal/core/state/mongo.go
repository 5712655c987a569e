package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-gl/mathgl/mgl64"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"github.com/orrerysim/orrery/internal/core/constraint"
	"github.com/orrerysim/orrery/internal/core/engine"
	"github.com/orrerysim/orrery/internal/core/template"
)

// Records are stored with their wire JSON as the payload and scalar fields
// alongside for filtering. This keeps one codec for both the network and
// the database.

// NewMongo connects to MongoDB and returns a store over the configured
// database.
func NewMongo(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("state: connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("state: ping: %w", err)
	}
	db := client.Database(cfg.Database)
	return &Store{
		Objects:     &mongoObjects{coll: db.Collection("objects")},
		Templates:   &mongoTemplates{coll: db.Collection("templates")},
		Constraints: &mongoConstraints{coll: db.Collection("constraints")},
		Forces:      &mongoForces{coll: db.Collection("forces")},
		Counters:    &mongoCounters{coll: db.Collection("counters")},
	}, nil
}

type objectDoc struct {
	ID   int64  `bson:"_id"`
	JSON []byte `bson:"json"`
}

type mongoObjects struct {
	coll *mongo.Collection
}

func (m *mongoObjects) encode(obj Object) (objectDoc, error) {
	data, err := json.Marshal(obj)
	if err != nil {
		return objectDoc{}, err
	}
	return objectDoc{ID: int64(obj.ID), JSON: data}, nil
}

func decodeObject(doc objectDoc) (Object, error) {
	var obj Object
	if err := json.Unmarshal(doc.JSON, &obj); err != nil {
		return Object{}, fmt.Errorf("state: corrupt object %d: %w", doc.ID, err)
	}
	return obj, nil
}

func (m *mongoObjects) Insert(ctx context.Context, obj Object) error {
	doc, err := m.encode(obj)
	if err != nil {
		return err
	}
	if _, err := m.coll.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: object %d", ErrExists, obj.ID)
		}
		return err
	}
	return nil
}

func (m *mongoObjects) Get(ctx context.Context, id uint64) (Object, error) {
	var doc objectDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": int64(id)}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return Object{}, fmt.Errorf("%w: object %d", ErrNotFound, id)
	}
	if err != nil {
		return Object{}, err
	}
	return decodeObject(doc)
}

func (m *mongoObjects) GetMulti(ctx context.Context, ids []uint64) (map[uint64]*Object, error) {
	out := make(map[uint64]*Object, len(ids))
	filter := make([]int64, 0, len(ids))
	for _, id := range ids {
		out[id] = nil
		filter = append(filter, int64(id))
	}
	cursor, err := m.coll.Find(ctx, bson.M{"_id": bson.M{"$in": filter}})
	if err != nil {
		return nil, err
	}
	var docs []objectDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		obj, err := decodeObject(doc)
		if err != nil {
			return nil, err
		}
		out[obj.ID] = &obj
	}
	return out, nil
}

func (m *mongoObjects) All(ctx context.Context) (map[uint64]Object, error) {
	cursor, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var docs []objectDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make(map[uint64]Object, len(docs))
	for _, doc := range docs {
		obj, err := decodeObject(doc)
		if err != nil {
			return nil, err
		}
		out[obj.ID] = obj
	}
	return out, nil
}

func (m *mongoObjects) IDs(ctx context.Context) ([]uint64, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.M{"_id": 1})
	cursor, err := m.coll.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, err
	}
	var docs []struct {
		ID int64 `bson:"_id"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	ids := make([]uint64, len(docs))
	for i, doc := range docs {
		ids[i] = uint64(doc.ID)
	}
	return ids, nil
}

func (m *mongoObjects) Update(ctx context.Context, obj Object) error {
	doc, err := m.encode(obj)
	if err != nil {
		return err
	}
	res, err := m.coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, doc)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: object %d", ErrNotFound, obj.ID)
	}
	return nil
}

func (m *mongoObjects) Delete(ctx context.Context, id uint64) (bool, error) {
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": int64(id)})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (m *mongoObjects) Reset(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{})
	return err
}

type templateDoc struct {
	ID   string `bson:"_id"`
	JSON []byte `bson:"json"`
}

type mongoTemplates struct {
	coll *mongo.Collection
}

func decodeTemplate(doc templateDoc) (template.Template, error) {
	var tpl template.Template
	if err := json.Unmarshal(doc.JSON, &tpl); err != nil {
		return template.Template{}, fmt.Errorf("state: corrupt template %q: %w", doc.ID, err)
	}
	return tpl, nil
}

func (m *mongoTemplates) Insert(ctx context.Context, tpl template.Template) error {
	data, err := json.Marshal(tpl)
	if err != nil {
		return err
	}
	if _, err := m.coll.InsertOne(ctx, templateDoc{ID: tpl.ID, JSON: data}); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: template %q", ErrExists, tpl.ID)
		}
		return err
	}
	return nil
}

func (m *mongoTemplates) Get(ctx context.Context, id string) (template.Template, error) {
	var doc templateDoc
	err := m.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return template.Template{}, fmt.Errorf("%w: template %q", ErrNotFound, id)
	}
	if err != nil {
		return template.Template{}, err
	}
	return decodeTemplate(doc)
}

func (m *mongoTemplates) GetMulti(ctx context.Context, ids []string) (map[string]*template.Template, error) {
	out := make(map[string]*template.Template, len(ids))
	for _, id := range ids {
		out[id] = nil
	}
	cursor, err := m.coll.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	var docs []templateDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	for _, doc := range docs {
		tpl, err := decodeTemplate(doc)
		if err != nil {
			return nil, err
		}
		out[doc.ID] = &tpl
	}
	return out, nil
}

func (m *mongoTemplates) All(ctx context.Context) (map[string]template.Template, error) {
	cursor, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var docs []templateDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make(map[string]template.Template, len(docs))
	for _, doc := range docs {
		tpl, err := decodeTemplate(doc)
		if err != nil {
			return nil, err
		}
		out[doc.ID] = tpl
	}
	return out, nil
}

func (m *mongoTemplates) Delete(ctx context.Context, id string) (bool, error) {
	res, err := m.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (m *mongoTemplates) Reset(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{})
	return err
}

type constraintDoc struct {
	ID     string `bson:"_id"`
	RigidA int64  `bson:"rb_a"`
	RigidB int64  `bson:"rb_b"`
	JSON   []byte `bson:"json"`
}

func constraintID(key constraint.Key) string {
	return fmt.Sprintf("%s|%s|%d|%d", key.Type, key.Tag, key.RigidA, key.RigidB)
}

type mongoConstraints struct {
	coll *mongo.Collection
}

func (m *mongoConstraints) Add(ctx context.Context, cons []constraint.Meta) (int, error) {
	added := 0
	for _, c := range cons {
		data, err := json.Marshal(c)
		if err != nil {
			return added, err
		}
		doc := constraintDoc{
			ID:     constraintID(c.Key()),
			RigidA: int64(c.RigidA),
			RigidB: int64(c.RigidB),
			JSON:   data,
		}
		if _, err := m.coll.InsertOne(ctx, doc); err != nil {
			if mongo.IsDuplicateKeyError(err) {
				continue
			}
			return added, err
		}
		added++
	}
	return added, nil
}

func (m *mongoConstraints) Get(ctx context.Context, bodyIDs []uint64) ([]constraint.Meta, error) {
	filter := bson.M{}
	if bodyIDs != nil {
		ids := make([]int64, len(bodyIDs))
		for i, id := range bodyIDs {
			ids[i] = int64(id)
		}
		filter = bson.M{"$or": bson.A{
			bson.M{"rb_a": bson.M{"$in": ids}},
			bson.M{"rb_b": bson.M{"$in": ids}},
		}}
	}
	cursor, err := m.coll.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	var docs []constraintDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make([]constraint.Meta, 0, len(docs))
	for _, doc := range docs {
		var c constraint.Meta
		if err := json.Unmarshal(doc.JSON, &c); err != nil {
			return nil, fmt.Errorf("state: corrupt constraint %q: %w", doc.ID, err)
		}
		out = append(out, c)
	}
	sortConstraints(out)
	return out, nil
}

func (m *mongoConstraints) Delete(ctx context.Context, cons []constraint.Meta) (int, error) {
	removed := 0
	for _, c := range cons {
		res, err := m.coll.DeleteOne(ctx, bson.M{"_id": constraintID(c.Key())})
		if err != nil {
			return removed, err
		}
		removed += int(res.DeletedCount)
	}
	return removed, nil
}

func (m *mongoConstraints) DropBody(ctx context.Context, bodyID uint64) (int, error) {
	res, err := m.coll.DeleteMany(ctx, bson.M{"$or": bson.A{
		bson.M{"rb_a": int64(bodyID)},
		bson.M{"rb_b": int64(bodyID)},
	}})
	if err != nil {
		return 0, err
	}
	return int(res.DeletedCount), nil
}

func (m *mongoConstraints) Reset(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{})
	return err
}

type forceVec struct {
	Force  [3]float64 `bson:"force"`
	Torque [3]float64 `bson:"torque"`
}

type forceDoc struct {
	ID      int64    `bson:"_id"`
	Direct  forceVec `bson:"direct"`
	Booster forceVec `bson:"booster"`
}

type mongoForces struct {
	coll *mongo.Collection
}

func (m *mongoForces) setSlot(ctx context.Context, id uint64, slot string, f engine.BodyForce) error {
	update := bson.M{"$set": bson.M{
		slot: forceVec{Force: [3]float64(f.Force), Torque: [3]float64(f.Torque)},
	}}
	opts := options.Update().SetUpsert(true)
	_, err := m.coll.UpdateOne(ctx, bson.M{"_id": int64(id)}, update, opts)
	return err
}

func (m *mongoForces) SetDirect(ctx context.Context, id uint64, f engine.BodyForce) error {
	return m.setSlot(ctx, id, "direct", f)
}

func (m *mongoForces) SetBooster(ctx context.Context, id uint64, f engine.BodyForce) error {
	return m.setSlot(ctx, id, "booster", f)
}

func (m *mongoForces) All(ctx context.Context) (map[uint64]engine.BodyForce, error) {
	cursor, err := m.coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, err
	}
	var docs []forceDoc
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}
	out := make(map[uint64]engine.BodyForce, len(docs))
	for _, doc := range docs {
		out[uint64(doc.ID)] = engine.BodyForce{
			Force:  mgl64.Vec3(doc.Direct.Force).Add(mgl64.Vec3(doc.Booster.Force)),
			Torque: mgl64.Vec3(doc.Direct.Torque).Add(mgl64.Vec3(doc.Booster.Torque)),
		}
	}
	return out, nil
}

func (m *mongoForces) Delete(ctx context.Context, id uint64) error {
	_, err := m.coll.DeleteOne(ctx, bson.M{"_id": int64(id)})
	return err
}

func (m *mongoForces) Reset(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{})
	return err
}

type mongoCounters struct {
	coll *mongo.Collection
}

func (m *mongoCounters) NextIDs(ctx context.Context, n int) ([]uint64, error) {
	if n <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidCount, n)
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := m.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": "objects"},
		bson.M{"$inc": bson.M{"value": int64(n)}},
		opts,
	).Decode(&doc)
	if err != nil {
		return nil, err
	}
	ids := make([]uint64, n)
	first := uint64(doc.Value) - uint64(n) + 1
	for i := range ids {
		ids[i] = first + uint64(i)
	}
	return ids, nil
}

func (m *mongoCounters) Current(ctx context.Context) (uint64, error) {
	var doc struct {
		Value int64 `bson:"value"`
	}
	err := m.coll.FindOne(ctx, bson.M{"_id": "objects"}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return uint64(doc.Value), nil
}

func (m *mongoCounters) Reset(ctx context.Context) error {
	_, err := m.coll.DeleteMany(ctx, bson.M{})
	return err
}
