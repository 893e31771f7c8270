package tus

import (
	"encoding/base64"
	"strings"
)

// EndpointEscaper rewrites the collection address before it is placed in
// the tusEndpoint metadata value.
type EndpointEscaper func(address string) string

// DollarToPercent replaces every "$" by "%" and leaves all other characters
// alone. oCIS space ids contain "$", which its upload endpoint cannot take
// back from the metadata otherwise.
func DollarToPercent(address string) string {
	return strings.ReplaceAll(address, "$", "%")
}

// NoEscape passes the address through unchanged.
func NoEscape(address string) string {
	return address
}

// MetadataPair is one key/value entry of the Upload-Metadata header.
type MetadataPair struct {
	Key   string
	Value string
}

// Metadata is an ordered Upload-Metadata set.
type Metadata []MetadataPair

// Encode renders the header value: pairs separated by ",", key and
// standard-base64 value separated by a single space.
func (m Metadata) Encode() string {
	parts := make([]string, 0, len(m))
	for _, p := range m {
		parts = append(parts, p.Key+" "+base64.StdEncoding.EncodeToString([]byte(p.Value)))
	}
	return strings.Join(parts, ",")
}

// Get returns the decoded value for key.
func (m Metadata) Get(key string) (string, bool) {
	for _, p := range m {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// BuildMetadata returns tusEndpoint and filename, in that order, followed by
// any extra pairs.
func BuildMetadata(collectionAddress, resourceName string, escape EndpointEscaper, extra ...MetadataPair) Metadata {
	if escape == nil {
		escape = NoEscape
	}
	md := Metadata{
		{Key: "tusEndpoint", Value: escape(collectionAddress)},
		{Key: "filename", Value: resourceName},
	}
	return append(md, extra...)
}

// ParseMetadata decodes an Upload-Metadata header value. Keys without a
// value decode to the empty string.
func ParseMetadata(header string) (Metadata, error) {
	var md Metadata
	if strings.TrimSpace(header) == "" {
		return md, nil
	}
	for _, item := range strings.Split(header, ",") {
		key, encoded, _ := strings.Cut(strings.TrimSpace(item), " ")
		value, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, err
		}
		md = append(md, MetadataPair{Key: key, Value: string(value)})
	}
	return md, nil
}
