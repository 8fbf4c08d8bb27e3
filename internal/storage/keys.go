package storage

const (
	cartPrefix         = "cart:"
	settingPrefix      = "setting:"
	addressDraftPrefix = "address_draft:"

	// ProductsCacheKey holds the last fetched catalog, used as a first-paint hint.
	ProductsCacheKey = "products_cache"
)

func CartKey(userID string) string {
	return cartPrefix + userID
}

func SettingKey(name string) string {
	return settingPrefix + name
}

func AddressDraftKey(userID string) string {
	return addressDraftPrefix + userID
}

// IsCartKey reports whether key holds a cart, returning its owner.
func IsCartKey(key string) (string, bool) {
	if len(key) <= len(cartPrefix) || key[:len(cartPrefix)] != cartPrefix {
		return "", false
	}
	return key[len(cartPrefix):], true
}
