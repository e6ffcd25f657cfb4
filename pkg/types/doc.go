// Package types defines the content schema model (lists, fields,
// relationships, access rules, UI hints), sessions and items, the Store and
// ListTable interfaces, and the standard errors shared by the storage, API
// and admin layers.
package types
