// Package bullet binds the collision backend interface to the native Bullet
// library through a thin C bridge. The binding compiles only under the
// "bullet" build tag so default builds need no native toolchain; without the
// tag the package is empty and the kinematic backend remains the only one
// registered.
package bullet
