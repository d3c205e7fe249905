package orm_test

import (
	"testing"
	"time"

	. "github.com/nivruth-naka/hibernate-orm"
)

type Post struct {
	ID       int64
	Title    string
	Secret   string `orm:"-"`
	Created  time.Time
	Comments []*Comment `orm:"oneToMany(Comment);indexedBy(PostID);mappedBy(Post);fetch(subselect);cascade(persist,remove)"`
}

type Comment struct {
	ID     int64 `orm:"id"`
	Body   string
	PostID int64 `orm:"column(post_id)"`
	Post   *Post `orm:"manyToOne(Post);indexedBy(PostID);fetch(join);lazy"`
}

func TestBuildMetadata(t *testing.T) {
	metadata, err := BuildMetadata(new(Post))
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := "Post", metadata.Entity; expected != actual {
		t.Fatalf("entity name should be %s, got %s", expected, actual)
	}
	if expected, actual := "post", metadata.TableName(); expected != actual {
		t.Fatalf("table name should be %s, got %s", expected, actual)
	}
	if l := len(metadata.Columns); l != 3 {
		t.Fatalf("3 columns expected, got %d : %v", l, metadata.Columns)
	}
	if idColumn := metadata.FindIdColumn(); idColumn.Field != "ID" {
		t.Fatalf("the id column should be held by the ID field, got %v", idColumn)
	}
	if l := len(metadata.Relations); l != 1 {
		t.Fatalf("1 relation expected, got %d", l)
	}
	relation := metadata.Relations[0]
	if relation.Type != OneToMany || relation.TargetEntity != "Comment" {
		t.Fatalf("a OneToMany relation targeting Comment was expected, got %v", relation)
	}
	if relation.IndexedBy != "PostID" || relation.MappedBy != "Post" {
		t.Fatalf("IndexedBy should be PostID and MappedBy should be Post, got %v", relation)
	}
	if relation.Fetch != FetchSubselect {
		t.Fatalf("the fetch mode should be subselect, got %v", relation.Fetch)
	}
	if relation.Cascade != Persist|Remove {
		t.Fatalf("the cascade should be persist and remove, got %v", relation.Cascade)
	}
}

func TestBuildMetadataColumnOptions(t *testing.T) {
	metadata, err := BuildMetadata(new(Comment))
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := "post_id", metadata.ResolveColumnNameByFieldName("PostID"); expected != actual {
		t.Fatalf("the PostID column should be named %s, got %s", expected, actual)
	}
	relation, resolved := metadata.ResolveRelationForFieldName("Post")
	if !resolved {
		t.Fatal("the Post relation should be resolved")
	}
	if relation.Type != ManyToOne || relation.Fetch != FetchJoin || !relation.Lazy {
		t.Fatalf("a lazy join fetched ManyToOne was expected, got %v", relation)
	}
}

func TestBuildMetadataTableNamer(t *testing.T) {
	metadata, err := BuildMetadata(new(Profile))
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := "profiles", metadata.TableName(); expected != actual {
		t.Fatalf("table name should be %s, got %s", expected, actual)
	}
	column, resolved := metadata.ResolveColumnByFieldName("Token")
	if !resolved {
		t.Fatal("the Token column should be resolved")
	}
	if expected, actual := "uuid", column.Type; expected != actual {
		t.Fatalf("the Token column type should be %s, got %s", expected, actual)
	}
}

func TestBuildMetadataErrors(t *testing.T) {
	t.Log("an entity without an id column is rejected")
	type Orphan struct {
		Name string
	}
	if _, err := BuildMetadata(new(Orphan)); err == nil {
		t.Fatal("BuildMetadata should fail without an id column")
	}
	t.Log("unknown options are rejected")
	type Broken struct {
		ID   int64  `orm:"id"`
		Name string `orm:"colonne(name)"`
	}
	if _, err := BuildMetadata(new(Broken)); err == nil {
		t.Fatal("BuildMetadata should fail on an unknown option")
	}
	t.Log("unknown fetch modes are rejected")
	type BrokenFetch struct {
		ID    int64   `orm:"id"`
		Posts []*Post `orm:"oneToMany(Post);indexedBy(ID);fetch(eager)"`
	}
	if _, err := BuildMetadata(new(BrokenFetch)); err == nil {
		t.Fatal("BuildMetadata should fail on an unknown fetch mode")
	}
}
