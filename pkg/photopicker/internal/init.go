// Package internal contains the shared infrastructure for the photopicker core.
// This includes logging, the decoded image cache, gesture direction helpers and
// localisation. Types and functions in this package are not part of the public API.
package internal
