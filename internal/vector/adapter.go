package vector

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate/entities/models"
)

type WeaviateClientAdapter struct {
	Client *weaviate.Client
}

func NewWeaviateClientAdapter(client *weaviate.Client) *WeaviateClientAdapter {
	return &WeaviateClientAdapter{Client: client}
}

func (a *WeaviateClientAdapter) ClassExists(ctx context.Context, className string) (bool, error) {
	return a.Client.Schema().ClassExistenceChecker().WithClassName(className).Do(ctx)
}

func (a *WeaviateClientAdapter) CreateClass(ctx context.Context, class *models.Class) error {
	return a.Client.Schema().ClassCreator().WithClass(class).Do(ctx)
}

func (a *WeaviateClientAdapter) GetClass(ctx context.Context, className string) (*models.Class, error) {
	return a.Client.Schema().ClassGetter().WithClassName(className).Do(ctx)
}

func (a *WeaviateClientAdapter) AddProperty(ctx context.Context, className string, property *models.Property) error {
	return a.Client.Schema().PropertyCreator().WithClassName(className).WithProperty(property).Do(ctx)
}

// DeleteClass removes the class and all of its objects. A missing class is
// not an error.
func (a *WeaviateClientAdapter) DeleteClass(ctx context.Context, className string) error {
	exists, err := a.ClassExists(ctx, className)
	if err != nil || !exists {
		return err
	}
	return a.Client.Schema().ClassDeleter().WithClassName(className).Do(ctx)
}

// ClassName maps a collection name to a Weaviate class name. Names made of
// a lower-case letter followed by [A-Za-z0-9_] only get their first letter
// upper-cased: "resumes" becomes "Resumes". Any other name is sanitized and
// suffixed with a hash of the raw name, so distinct collections never share
// a class: "facts__chat-1" becomes "Facts__chat_1_h" plus 16 hex digits.
func ClassName(collection string) string {
	if plainName(collection) {
		return strings.ToUpper(collection[:1]) + collection[1:]
	}

	var b strings.Builder
	for _, r := range collection {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	name := b.String()
	if name == "" || !isLetter(name[0]) {
		name = "C" + name
	}
	sum := sha256.Sum256([]byte(collection))
	return strings.ToUpper(name[:1]) + name[1:] + hashMarker + hex.EncodeToString(sum[:8])
}

const hashMarker = "_h"

// plainName reports whether collection maps to a class name unchanged apart
// from its first letter. Names that already end like a hashed class name are
// excluded so the two forms cannot meet.
func plainName(collection string) bool {
	if collection == "" || collection[0] < 'a' || collection[0] > 'z' {
		return false
	}
	for i := 1; i < len(collection); i++ {
		c := collection[i]
		if !isLetter(c) && !(c >= '0' && c <= '9') && c != '_' {
			return false
		}
	}
	return !hashedSuffix(collection)
}

func hashedSuffix(name string) bool {
	const n = len(hashMarker) + 16
	if len(name) < n || name[len(name)-n:len(name)-16] != hashMarker {
		return false
	}
	for _, c := range name[len(name)-16:] {
		if !(c >= '0' && c <= '9') && !(c >= 'a' && c <= 'f') {
			return false
		}
	}
	return true
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}
