package hdf5

import (
	"fmt"
	"path"
	"strings"
)

// ParseAttrPath splits "object@attribute" into a rooted object path and
// the attribute name. "/@units" names an attribute of the root group.
func ParseAttrPath(p string) (object, attr string, err error) {
	at := strings.LastIndexByte(p, '@')
	if at < 0 {
		return "", "", fmt.Errorf("attribute path %q has no '@'", p)
	}
	if attr = p[at+1:]; attr == "" {
		return "", "", fmt.Errorf("attribute path %q has an empty name", p)
	}
	return cleanPath(p[:at]), attr, nil
}

// JoinAttrPath is the inverse of ParseAttrPath.
func JoinAttrPath(object, attr string) string {
	object = cleanPath(object)
	if object == "/" {
		return "/@" + attr
	}
	return object + "@" + attr
}

// cleanPath roots p and removes redundant separators.
func cleanPath(p string) string {
	return path.Clean("/" + p)
}

// splitPath returns the link names along p; the root has none.
func splitPath(p string) []string {
	p = strings.Trim(cleanPath(p), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
