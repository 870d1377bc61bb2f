// Package keys builds backend-visible keys from a namespace and a user key.
package keys

import "strings"

// Separator joins the namespace prefix and the user key.
const Separator = ":"

var escaper = strings.NewReplacer("%", "%25", Separator, "%3A")

// Escape rewrites separator characters inside a user key so that distinct
// (namespace, key) pairs can never collide once joined.
func Escape(key string) string {
	if !strings.ContainsAny(key, "%"+Separator) {
		return key
	}
	return escaper.Replace(key)
}

// Build returns the backend-visible key. The user key is escaped even with an
// empty namespace, so an un-namespaced cache sharing a store with a
// namespaced one can never read or clobber the other's entries.
func Build(namespace, key string) string {
	if namespace == "" {
		return Escape(key)
	}
	return namespace + Separator + Escape(key)
}

// Prefix returns the string every key built under namespace starts with.
// Empty namespace means no prefix (the whole keyspace).
func Prefix(namespace string) string {
	if namespace == "" {
		return ""
	}
	return namespace + Separator
}
