package transport

import "strings"

// Lookup name suffixes for the two plugin roles.
const (
	PublisherSuffix  = "_pub"
	SubscriberSuffix = "_sub"
)

// Identity strips one trailing suffix from lookupName. Names that do not end
// in suffix are returned unchanged.
func Identity(lookupName, suffix string) string {
	if suffix == "" {
		return lookupName
	}
	name, _ := strings.CutSuffix(lookupName, suffix)
	return name
}

// PublisherIdentity returns the transport identity of a publisher lookup name.
func PublisherIdentity(lookupName string) string {
	return Identity(lookupName, PublisherSuffix)
}

// SubscriberIdentity returns the transport identity of a subscriber lookup name.
func SubscriberIdentity(lookupName string) string {
	return Identity(lookupName, SubscriberSuffix)
}

// PublisherLookupName returns the publisher lookup name for a transport.
func PublisherLookupName(identity string) string {
	return identity + PublisherSuffix
}

// SubscriberLookupName returns the subscriber lookup name for a transport.
func SubscriberLookupName(identity string) string {
	return identity + SubscriberSuffix
}

// WireTopic is the default wire topic for a transport: "<base>/<name>".
func WireTopic(baseTopic, transportName string) string {
	return baseTopic + "/" + transportName
}
