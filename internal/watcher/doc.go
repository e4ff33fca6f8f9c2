// Package watcher reports changes to the entries of a single directory.
//
// A DirectoryWatch blocks in ReadChanges until at least one change is
// available and encodes every change it can fit into the caller's buffer as a
// change batch (see package changes). Changes that do not fit are kept for the
// next call. Attribute-only changes are not reported and subdirectories are not
// watched.
package watcher
