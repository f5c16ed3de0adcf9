package vector

import (
	"context"

	"github.com/weaviate/weaviate/entities/models"
)

// Weaviate property data types used for metadata.
const (
	DataTypeText    = "text"
	DataTypeInt     = "int"
	DataTypeNumber  = "number"
	DataTypeBoolean = "boolean"
)

// SchemaClient defines the interface for Weaviate schema operations
type SchemaClient interface {
	ClassExists(ctx context.Context, className string) (bool, error)
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, className string) (*models.Class, error)
	AddProperty(ctx context.Context, className string, property *models.Property) error
	DeleteClass(ctx context.Context, className string) error
}

// BaseProperties are declared on every collection class. Identity fields use
// field tokenization so equality filters match whole values.
func BaseProperties() []*models.Property {
	return []*models.Property{
		{Name: "content", DataType: []string{DataTypeText}},
		{Name: "record_id", DataType: []string{DataTypeText}, Tokenization: "field"},
		{Name: "source_id", DataType: []string{DataTypeText}, Tokenization: "field"},
		{Name: "source_type", DataType: []string{DataTypeText}, Tokenization: "field"},
		{Name: "document_name", DataType: []string{DataTypeText}, Tokenization: "field"},
		{Name: "chunk_index", DataType: []string{DataTypeInt}},
	}
}

// EnsureClass creates the class for a collection with cosine distance, or
// adds any base property an existing class is missing.
func EnsureClass(ctx context.Context, client SchemaClient, className string) error {
	exists, err := client.ClassExists(ctx, className)
	if err != nil {
		return err
	}

	if !exists {
		class := &models.Class{
			Class:       className,
			Description: "Chunks of one document collection",
			Vectorizer:  "none",
			VectorIndexConfig: map[string]interface{}{
				"distance": "cosine",
			},
			Properties: BaseProperties(),
		}
		return client.CreateClass(ctx, class)
	}

	return EnsureProperties(ctx, client, className, BaseProperties())
}

// EnsureProperties adds the properties the class does not have yet and
// returns nothing for those already present, whatever their type.
func EnsureProperties(ctx context.Context, client SchemaClient, className string, properties []*models.Property) error {
	class, err := client.GetClass(ctx, className)
	if err != nil {
		return err
	}

	existingProps := make(map[string]bool)
	for _, p := range class.Properties {
		existingProps[p.Name] = true
	}

	for _, p := range properties {
		if !existingProps[p.Name] {
			if err := client.AddProperty(ctx, className, p); err != nil {
				return err
			}
			existingProps[p.Name] = true
		}
	}

	return nil
}

// PropertyTypes maps property names of a class to their first data type.
func PropertyTypes(class *models.Class) map[string]string {
	types := make(map[string]string, len(class.Properties))
	for _, p := range class.Properties {
		if len(p.DataType) > 0 {
			types[p.Name] = p.DataType[0]
		}
	}
	return types
}
