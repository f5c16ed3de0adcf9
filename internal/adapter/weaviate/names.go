package weaviate

import (
	"strconv"
	"strings"

	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
)

// Reserved properties present on every class. Metadata keys with the same
// name are dropped on write.
const (
	propContent  = "content"
	propRecordID = "record_id"
)

// PropertyName maps a flattened metadata key to a Weaviate property name.
// Letters and digits are kept. An underscore is kept when a letter or digit
// follows it; everything else is escaped behind a double underscore:
//
//	"."   -> "__d"
//	"_"   -> "__u"
//	other -> "__x" + hex code point + "_"
//
// so "structured_data.total" becomes "structured_data__dtotal" and
// MetadataKey reverses it exactly. A leading digit gets a "__n" prefix.
func PropertyName(key string) string {
	runes := []rune(key)
	var b strings.Builder
	if len(runes) > 0 && isDigit(runes[0]) {
		b.WriteString("__n")
	}
	for i, r := range runes {
		switch {
		case isAlnum(r):
			b.WriteRune(r)
		case r == '_' && i+1 < len(runes) && isAlnum(runes[i+1]):
			b.WriteByte('_')
		case r == '_':
			b.WriteString("__u")
		case r == '.':
			b.WriteString("__d")
		default:
			b.WriteString("__x")
			b.WriteString(strconv.FormatInt(int64(r), 16))
			b.WriteByte('_')
		}
	}
	return b.String()
}

// MetadataKey is the inverse of PropertyName. A property that is not a
// valid encoding is returned as is.
func MetadataKey(property string) string {
	var b strings.Builder
	for i := 0; i < len(property); {
		c := property[i]
		if c != '_' || i+1 >= len(property) || property[i+1] != '_' {
			b.WriteByte(c)
			i++
			continue
		}
		if i+2 >= len(property) {
			return property
		}
		switch property[i+2] {
		case 'd':
			b.WriteByte('.')
			i += 3
		case 'u':
			b.WriteByte('_')
			i += 3
		case 'n':
			i += 3
		case 'x':
			end := strings.IndexByte(property[i+3:], '_')
			if end <= 0 {
				return property
			}
			code, err := strconv.ParseInt(property[i+3:i+3+end], 16, 32)
			if err != nil {
				return property
			}
			b.WriteRune(rune(code))
			i += 3 + end + 1
		default:
			return property
		}
	}
	return b.String()
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isAlnum(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || isDigit(r)
}

// ObjectID derives the Weaviate object UUID from the record id so that
// writing the same record twice overwrites it.
func ObjectID(collection, recordID string) strfmt.UUID {
	return strfmt.UUID(uuid.NewSHA1(uuid.NameSpaceOID, []byte(collection+"/"+recordID)).String())
}
