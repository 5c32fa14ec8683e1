package cache

import "strings"

// Key namespaces.
const (
	NamespaceCart      = "cart"
	NamespaceShipping  = "shipquote"
	NamespaceFavorites = "fav"
	NamespaceAnalytics = "an"
)

// Key joins a namespace and identifier parts into a colon separated cache key.
func Key(namespace string, parts ...string) string {
	var b strings.Builder
	b.WriteString(namespace)
	for _, p := range parts {
		b.WriteByte(':')
		b.WriteString(p)
	}
	return b.String()
}

// SessionCart is the key holding a session's cart snapshot.
func SessionCart(sessionID string) string {
	return Key(NamespaceCart, sessionID)
}

// ShippingQuote is the key holding a cached quote for a normalised postal code.
func ShippingQuote(postalCode string) string {
	return Key(NamespaceShipping, postalCode)
}

// SessionFavorites is the key holding a session's favourite product ids.
func SessionFavorites(sessionID string) string {
	return Key(NamespaceFavorites, sessionID)
}
