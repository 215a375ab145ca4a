package domain

import (
	"fmt"
	"net/url"
)

// DecodeObjectKey reverses the encoding storage notifications apply to
// object keys: '+' stands for space, the rest is percent-encoded. Index
// record ids are always derived from the decoded key.
func DecodeObjectKey(key string) (string, error) {
	decoded, err := url.QueryUnescape(key)
	if err != nil {
		return "", fmt.Errorf("unescape key %q: %w", key, err)
	}
	return decoded, nil
}
