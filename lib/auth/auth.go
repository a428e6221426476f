// Package auth signs requests with the master key of a database account.
//
// The signature is an HMAC-SHA256 over
//
//	verb + "\n" + resourceType + "\n" + resourceID + "\n" + date + "\n" + "" + "\n"
//
// (verb, resource type and date lower case) keyed with the base64 decoded
// master key. The authorization header value is the url encoded string
// "type=master&ver=1.0&sig=<base64 signature>".
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ValentinKolb/dDoc/lib/dberr"
	"github.com/ValentinKolb/dDoc/lib/resource"
)

const (
	tokenType    = "master"
	tokenVersion = "1.0"
)

// KeySigner signs requests with a master key
type KeySigner struct {
	key []byte
	now func() time.Time
}

// NewKeySigner creates a signer from the base64 encoded master key
func NewKeySigner(masterKey string) (*KeySigner, error) {
	key, err := base64.StdEncoding.DecodeString(masterKey)
	if err != nil {
		return nil, dberr.Client(dberr.ErrInvalidArgument, "master key is not base64 encoded: %v", err)
	}
	return &KeySigner{key: key, now: time.Now}, nil
}

// KeySignature returns the authorization header value for a request. The
// date is taken from the x-ms-date header of headers.
func (s *KeySigner) KeySignature(verb, resourceIDOrFullName, resourceType string, headers resource.Headers) string {
	payload := strings.ToLower(verb) + "\n" +
		strings.ToLower(resourceType) + "\n" +
		resourceIDOrFullName + "\n" +
		strings.ToLower(headers.Get(resource.HeaderDate)) + "\n" +
		"" + "\n"

	mac := hmac.New(sha256.New, s.key)
	mac.Write([]byte(payload))
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	return url.QueryEscape("type=" + tokenType + "&ver=" + tokenVersion + "&sig=" + sig)
}

// Sign sets the date, version and authorization headers of a request
func (s *KeySigner) Sign(verb, resourceIDOrFullName, resourceType string, headers resource.Headers) {
	headers.Set(resource.HeaderDate, FormatDate(s.now()))
	headers.Set(resource.HeaderVersion, resource.APIVersion)
	headers.Set(resource.HeaderAuthorization, s.KeySignature(verb, resourceIDOrFullName, resourceType, headers))
}

// FormatDate formats t the way the x-ms-date header expects it (RFC 1123, GMT)
func FormatDate(t time.Time) string {
	return t.UTC().Format(http.TimeFormat)
}

// Verify checks the authorization header of a signed request
func (s *KeySigner) Verify(verb, resourceIDOrFullName, resourceType string, headers resource.Headers) error {
	got := headers.Get(resource.HeaderAuthorization)
	if got == "" {
		return dberr.New(dberr.StatusUnauthorized, dberr.SubStatusUnknown, "authorization header is missing")
	}
	want := s.KeySignature(verb, resourceIDOrFullName, resourceType, headers)
	if !hmac.Equal([]byte(got), []byte(want)) {
		return dberr.New(dberr.StatusUnauthorized, dberr.SubStatusUnknown, "signature does not match")
	}
	return nil
}
