package orm_test

import (
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"

	. "github.com/nivruth-naka/hibernate-orm"
	"github.com/nivruth-naka/hibernate-orm/tools"
)

type userRow struct {
	Name, Email string
}

func LoadFixtures(connection *Connection) error {
	for _, user := range []userRow{
		{Name: "John Doe", Email: "john.doe@acme.com"},
		{Name: "Jane Doe", Email: "jane.doe@acme.com"},
		{Name: "Jack Doe", Email: "jack.doe@acme.com"},
	} {
		_, err := connection.Exec("INSERT INTO users(name,email,created) values(?,?,?);", user.Name, user.Email, time.Now())
		if err != nil {
			return err
		}
	}
	return nil
}

func TestConnectionGet(t *testing.T) {
	connection := GetConnection(t)
	defer connection.Close()
	if err := LoadFixtures(connection); err != nil {
		t.Fatal(err)
	}
	user := new(userRow)
	err := connection.Get(user, "SELECT name,email from users ORDER BY id ASC;")
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := "John Doe", user.Name; expected != actual {
		t.Fatalf("Expected '%s', got '%s'", expected, actual)
	}
}

func TestConnectionSelect(t *testing.T) {
	connection := GetConnection(t)
	defer connection.Close()
	result, err := connection.Exec("INSERT INTO users(name,email) values('john doe','johndoe@acme.com'),('jane doe','jane.doe@acme.com');")
	if err != nil {
		t.Fatal(err)
	}
	if r, err := result.RowsAffected(); err != nil {
		t.Fatal(err)
	} else if r != 2 {
		t.Fatalf("2 records should have been created, got %d", r)
	}
	users := []*userRow{}
	err = connection.Select(&users, "SELECT users.name, users.email from users ORDER BY users.id ASC ;")
	if err != nil {
		t.Fatal(err)
	}
	if expected, name := "john doe", users[0].Name; name != expected {
		t.Fatalf("users[0].Name should be '%s', got '%s'", expected, name)
	}
}

func TestConnectionLogsStatements(t *testing.T) {
	logger := &recordingLogger{t: t}
	connection := GetConnectionWithLogger(t, logger)
	defer connection.Close()
	if _, err := connection.Exec("INSERT INTO users(name,email) values(?,?);", "john doe", "john.doe@acme.com"); err != nil {
		t.Fatal(err)
	}
	if count := logger.CountMatching("INSERT INTO users"); count != 1 {
		t.Fatalf("the executed statement should be logged once, got %d", count)
	}
	var count int64
	if err := connection.Get(&count, "SELECT COUNT(id) FROM users;"); err != nil {
		t.Fatal(err)
	}
	if count := logger.CountMatching("SELECT COUNT(id) FROM users;"); count != 1 {
		t.Fatalf("the fetching statement should be logged once, got %d", count)
	}
	users := []*userRow{}
	if err := connection.Select(&users, "SELECT name,email FROM users;"); err != nil {
		t.Fatal(err)
	}
	if count := logger.CountMatching("SELECT name,email FROM users;"); count != 1 {
		t.Fatalf("the select statement should be logged once, got %d", count)
	}
}

func TestConnectionQueryx(t *testing.T) {
	connection := GetConnection(t)
	defer connection.Close()
	if err := LoadFixtures(connection); err != nil {
		t.Fatal(err)
	}
	rows, err := connection.Queryx("SELECT id,name,created FROM users ORDER BY id ASC;")
	if err != nil {
		t.Fatal(err)
	}
	result, err := tools.ScanRowsToMaps(rows)
	if err != nil {
		t.Fatal(err)
	}
	if l := len(result); l != 3 {
		t.Fatalf("length should be 3, got %d", l)
	}
	if created, ok := result[0]["created"].(time.Time); !ok {
		t.Fatalf("created should be time.Time, got %#v", created)
	}
}

func TestConnectionTransaction(t *testing.T) {
	connection := GetConnection(t)
	defer connection.Close()
	transaction, err := connection.BeginTransaction()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := transaction.Exec("INSERT INTO users(name,email) values('gone','gone@acme.com');"); err != nil {
		t.Fatal(err)
	}
	if err := transaction.Rollback(); err != nil {
		t.Fatal(err)
	}
	var count int64
	if err := connection.Get(&count, "SELECT COUNT(id) FROM users;"); err != nil {
		t.Fatal(err)
	}
	if count != 0 {
		t.Fatalf("the rolled back insert should not be visible, got %d rows", count)
	}
	transaction, err = connection.BeginTransaction()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := transaction.Exec("INSERT INTO users(name,email) values('kept','kept@acme.com');"); err != nil {
		t.Fatal(err)
	}
	if err := transaction.Commit(); err != nil {
		t.Fatal(err)
	}
	if err := connection.Get(&count, "SELECT COUNT(id) FROM users;"); err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("the committed insert should be visible, got %d rows", count)
	}
}
