package orm_test

import (
	"testing"

	. "github.com/nivruth-naka/hibernate-orm"
)

func TestMetadataFrom(t *testing.T) {
	metadata, err := MetadataFrom(`{
		"Entity": "Tag",
		"Table": {"Name": "Tags"},
		"Columns": [
			{"ID": true, "Field": "ID"},
			{"Field": "Label", "Name": "label"}
		]
	}`)
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := "Tag", metadata.Entity; expected != actual {
		t.Fatalf("entity name should be %s, got %s", expected, actual)
	}
	if expected, actual := "tags", metadata.TableName(); expected != actual {
		t.Fatalf("table name should be %s, got %s", expected, actual)
	}
	if idColumn := metadata.FindIdColumn(); idColumn.Field != "ID" {
		t.Fatalf("the id column should be held by the ID field, got %v", idColumn)
	}
	if expected, actual := "label", metadata.ResolveColumnNameByFieldName("Label"); expected != actual {
		t.Fatalf("the Label column should be named %s, got %s", expected, actual)
	}
	if _, err := MetadataFrom("{"); err == nil {
		t.Fatal("MetadataFrom should fail on invalid json")
	}
}

func TestMetadataBuildFieldValueMap(t *testing.T) {
	user := &User{ID: 1, Name: "John Doe", Email: "john.doe@acme.com"}
	values := User{}.ProvideMetadata().BuildFieldValueMap(user)
	if expected, actual := int64(1), values["ID"]; expected != actual {
		t.Fatalf("ID should be %d, got %v", expected, actual)
	}
	if expected, actual := "john.doe@acme.com", values["Email"]; expected != actual {
		t.Fatalf("Email should be %s, got %v", expected, actual)
	}
	if _, ok := values["PasswordDigest"]; !ok {
		t.Fatal("every column field should be part of the map")
	}
}
