package identity

import "strings"

// Key is a normalized sender identifier used for context lookup.
//
// Keys are scoped by platform so the same raw handle on two platforms never
// shares a conversation.
type Key string

// Normalize canonicalizes a (platform, handle) pair into a stable lookup key.
//
// Both parts are trimmed and lower-cased. Phone numbers keep their leading
// plus sign; internal whitespace inside the handle is removed so "+1 555 123"
// and "+1555123" resolve the same conversation.
func Normalize(platform string, handle string) Key {
	platform = strings.ToLower(strings.TrimSpace(platform))
	handle = strings.ToLower(strings.Join(strings.Fields(handle), ""))

	return Key(platform + ":" + handle)
}

// Platform returns the platform tag portion of the key.
func (k Key) Platform() string {
	platform, _, _ := strings.Cut(string(k), ":")
	return platform
}

// Handle returns the handle portion of the key.
func (k Key) Handle() string {
	_, handle, _ := strings.Cut(string(k), ":")
	return handle
}

// IsZero reports whether the key carries no usable handle.
func (k Key) IsZero() bool {
	return k.Handle() == ""
}
