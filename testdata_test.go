package orm_test

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	migrate "github.com/rubenv/sql-migrate"
	"golang.org/x/crypto/bcrypt"

	"github.com/google/uuid"
	. "github.com/nivruth-naka/hibernate-orm"
)

// Article is an article
type Article struct {
	ID       int64
	Title    string
	Content  string
	Created  time.Time
	Updated  time.Time
	Author   *User
	AuthorID int64
}

func (Article) ProvideMetadata() Metadata {
	return Metadata{
		Entity: "Article",
		Table:  Table{Name: "articles"},
		Columns: []Column{
			{ID: true, Field: "ID"},
			{Field: "Title"},
			{Field: "Content"},
			{Field: "Created"},
			{Field: "Updated"},
			{Field: "AuthorID", Name: "author_id"},
		},
		Relations: []Relation{
			{
				Field:        "Author",
				Type:         ManyToOne,
				TargetEntity: "User",
				IndexedBy:    "AuthorID",
				Fetch:        FetchJoin,
			},
		},
	}
}

func (a *Article) BeforeCreate() (err error) {
	a.Created = time.Now()
	a.Updated = time.Now()
	return
}

func (a *Article) BeforeUpdate() (err error) {
	a.Updated = time.Now()
	return
}

// User is a user
type User struct {
	ID             int64
	Name           string
	Email          string
	Created        time.Time
	Updated        time.Time
	PasswordDigest string
	Articles       []*Article
	Info           *UserInfo
}

func (user *User) AddArticles(articles ...*Article) {
	for _, article := range articles {
		article.Author = user
		article.AuthorID = user.ID
	}
	user.Articles = append(user.Articles, articles...)
}

func (user *User) SetInfo(info *UserInfo) {
	user.Info = info
	info.UserID = user.ID
}

func (User) ProvideMetadata() Metadata {
	return Metadata{
		Entity: "User",
		Table:  Table{Name: "users"},
		Columns: []Column{
			{ID: true, Field: "ID"},
			{Field: "Email"},
			{Field: "Name"},
			{Field: "Created"},
			{Field: "Updated"},
			{Field: "PasswordDigest", Name: "password_digest"},
		},
		Relations: []Relation{
			{
				Field:        "Articles",
				Type:         OneToMany,
				TargetEntity: "Article",
				IndexedBy:    "AuthorID",
				MappedBy:     "Author",
				Fetch:        FetchSubselect,
				Cascade:      Persist | Remove,
			},
			{
				Field:        "Info",
				Type:         OneToOne,
				TargetEntity: "UserInfo",
				IndexedBy:    "UserID",
				Fetch:        FetchSelect,
				Lazy:         true,
				Cascade:      Persist | Remove,
			},
		},
	}
}

func (user *User) BeforeCreate() (err error) {
	user.Created = time.Now()
	user.Updated = time.Now()
	return
}

func (user *User) BeforeUpdate() (err error) {
	user.Updated = time.Now()
	return
}

// GenerateSecurePassword hashes a password with bcrypt
// see http://stackoverflow.com/questions/23259586/bcrypt-password-hashing-in-golang-compatible-with-node-js
func (user *User) GenerateSecurePassword(password string) error {
	passwordDigest, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user.PasswordDigest = string(passwordDigest)
	return nil
}

// Authenticate return an error if the password and PasswordDigest do not match
func (user User) Authenticate(password string) error {
	return bcrypt.CompareHashAndPassword([]byte(user.PasswordDigest), []byte(password))
}

// UserInfo is the owned side of the User OneToOne relation
type UserInfo struct {
	ID     int64
	Url    string
	UserID int64
}

func (UserInfo) ProvideMetadata() Metadata {
	return Metadata{
		Entity: "UserInfo",
		Table:  Table{Name: "user_infos"},
		Columns: []Column{
			{ID: true, Field: "ID"},
			{Field: "Url"},
			{Field: "UserID", Name: "user_id"},
		},
	}
}

// Note is mapped twice : as "Note" on the notes table and as "ArchivedNote"
// on the archived_notes table. Instances carry their kind, the entity name
// resolver registered by GetORM picks the mapping from it.
type Note struct {
	ID   int64
	Body string
	Kind string
}

func (Note) ProvideMetadata() Metadata {
	return Metadata{
		Entity: "Note",
		Table:  Table{Name: "notes"},
		Cached: true,
		Columns: []Column{
			{ID: true, Field: "ID"},
			{Field: "Body"},
			{Field: "Kind"},
		},
	}
}

// ArchivedNoteMetadata is the second mapping of the Note type
func ArchivedNoteMetadata() Metadata {
	return Metadata{
		Entity: "ArchivedNote",
		Table:  Table{Name: "archived_notes"},
		Columns: []Column{
			{ID: true, Field: "ID"},
			{Field: "Body"},
			{Field: "Kind"},
		},
	}
}

// ResolveNoteEntityName resolves the mapping of a Note from its Kind
func ResolveNoteEntityName(entity Entity) string {
	if note, ok := entity.(*Note); ok {
		if note.Kind == "archived" {
			return "ArchivedNote"
		}
		return "Note"
	}
	return ""
}

// Preferences is a value type persisted as JSON through a UserType
type Preferences struct {
	Theme string
	Tags  []string
}

// Profile declares its mapping through struct tags
type Profile struct {
	ID          int64       `orm:"id"`
	UserID      int64       `orm:"column(user_id)"`
	Token       uuid.UUID   `orm:"column(token);type(uuid)"`
	Preferences Preferences `orm:"column(preferences);type(preferences_json)"`
	Active      bool        `orm:"column(active);type(boolint)"`
}

func (Profile) TableName() string {
	return "profiles"
}

func GetUserFixture() []*User {
	return []*User{
		{Name: "john doe", Email: "john.doe@acme.com"},
		{Name: "jane doe", Email: "jane.doe@acme.com"},
		{Name: "bill doe", Email: "bill.doe@acme.com"},
		{Name: "suzy doe", Email: "suzy.doe@acme.com"},
	}
}

func GetArticleFixture() []*Article {
	return []*Article{
		{Title: "First Article Title", Content: "First Article Content"},
		{Title: "Second Article Title", Content: "Second Article Content"},
	}
}

func GetConnection(t *testing.T) *Connection {
	return GetConnectionWithLogger(t, t)
}

func GetConnectionWithLogger(t *testing.T, logger Logger) *Connection {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	db.SetMaxOpenConns(1)
	migrations := &migrate.FileMigrationSource{
		Dir: "testdata/migrations/development.sqlite3",
	}
	_, err = migrate.Exec(db, "sqlite3", migrations, migrate.Up)
	if err != nil {
		t.Fatal(err)
	}

	return NewConnectionWithOptions("sqlite3", db, &ConnectionOptions{Logger: logger})
}

// recordingLogger keeps the statements issued through a connection,
// tests use it to assert on the SQL actually executed.
type recordingLogger struct {
	t       *testing.T
	entries []string
}

func (logger *recordingLogger) Log(args ...interface{}) {
	logger.t.Log(args...)
	if len(args) > 0 {
		if query, ok := args[0].(string); ok {
			logger.entries = append(logger.entries, query)
		}
	}
}

func (logger *recordingLogger) Matching(substring string) []string {
	matching := []string{}
	for _, entry := range logger.entries {
		if strings.Contains(entry, substring) {
			matching = append(matching, entry)
		}
	}
	return matching
}

func (logger *recordingLogger) CountMatching(substring string) int {
	return len(logger.Matching(substring))
}

func GetORM(t *testing.T) *ORM {
	return GetORMWithConnection(t, GetConnection(t))
}

func GetORMWithConnection(t *testing.T, connection *Connection) *ORM {
	orm := NewORM(connection)
	orm.RegisterType("preferences_json", NewJSONType(Preferences{}))
	err := orm.Register(new(User), new(UserInfo), new(Article), new(Note), new(Profile))
	if err != nil {
		t.Fatal(err)
	}
	if err := orm.RegisterMetadata(new(Note), ArchivedNoteMetadata()); err != nil {
		t.Fatal(err)
	}
	orm.AddEntityNameResolver(EntityNameResolverFunc(ResolveNoteEntityName))
	return orm
}

type array []interface{}
