// Package async provides bounded parallel task execution with error
// collection.
//
// The [Run] function executes independent operations concurrently under a
// semaphore-enforced width and returns all errors joined. It is used by the
// apply phase to provision independent resources within one dependency
// level.
package async
