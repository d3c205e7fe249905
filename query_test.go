package orm_test

import (
	"strings"
	"testing"

	. "github.com/nivruth-naka/hibernate-orm"
)

func TestQueryBuildSelect(t *testing.T) {
	orm := GetORM(t)
	userRepository := orm.MustGetRepository(new(User))
	query := Query{
		Where:   []string{"Email", "=", "?"},
		Params:  array{"john.doe@acme.com"},
		OrderBy: map[string]Order{"Name": ASC},
		Limit:   10,
		Offset:  5,
	}
	queryString, values, err := query.BuildQuery(userRepository)
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := 1, len(values); expected != actual {
		t.Fatalf("values length should be %d, got %d", expected, actual)
	}
	for _, fragment := range []string{
		"users.id AS ID",
		"users.email AS Email",
		"FROM users",
		"WHERE users.email = ?",
		"ORDER BY name ASC",
		"LIMIT 10",
		"OFFSET 5",
	} {
		if !strings.Contains(queryString, fragment) {
			t.Fatalf("the query should contain '%s', got : %s", fragment, queryString)
		}
	}
}

func TestQueryJoin(t *testing.T) {
	orm := GetORM(t)
	articleRepository := orm.MustGetRepository(new(Article))
	query := Query{Select: []string{"ID"}, Join: []Join{{TargetEntity: "User"}}, Where: []string{"User.ID", "=", "?"}, Params: array{1}}
	queryString, _, err := query.BuildQuery(articleRepository)
	if err != nil {
		t.Fatal(err)
	}
	for _, fragment := range []string{
		"FROM articles",
		"JOIN users ON users.id = articles.author_id",
		"WHERE users.id = ?",
	} {
		if !strings.Contains(queryString, fragment) {
			t.Fatalf("the query should contain '%s', got : %s", fragment, queryString)
		}
	}
}

func TestQueryBuildDelete(t *testing.T) {
	orm := GetORM(t)
	userRepository := orm.MustGetRepository(new(User))
	query := Query{Type: DELETE, Where: []string{"ID", "=", "?"}, Params: array{1}}
	queryString, values, err := query.BuildQuery(userRepository)
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := 1, len(values); expected != actual {
		t.Fatalf("values length should be %d, got %d", expected, actual)
	}
	if !strings.HasPrefix(queryString, "DELETE FROM users") {
		t.Fatalf("the query should start with 'DELETE FROM users', got : %s", queryString)
	}
	if !strings.Contains(queryString, "WHERE users.id = ?") {
		t.Fatalf("the query should contain the WHERE clause, got : %s", queryString)
	}
}

func TestQueryBuildUpdate(t *testing.T) {
	orm := GetORM(t)
	userRepository := orm.MustGetRepository(new(User))
	query := Query{
		Type:   UPDATE,
		Set:    map[string]interface{}{"Name": "Jack"},
		Where:  []string{"ID", "=", "?"},
		Params: array{1},
	}
	queryString, values, err := query.BuildQuery(userRepository)
	if err != nil {
		t.Fatal(err)
	}
	if expected, actual := 2, len(values); expected != actual {
		t.Fatalf("values length should be %d, got %d", expected, actual)
	}
	for _, fragment := range []string{"UPDATE users SET name = ?", "WHERE users.id = ?"} {
		if !strings.Contains(queryString, fragment) {
			t.Fatalf("the query should contain '%s', got : %s", fragment, queryString)
		}
	}
}

func TestQueryReuse(t *testing.T) {
	orm := GetORM(t)
	userRepository := orm.MustGetRepository(new(User))
	query := Query{Where: []string{"Email", "=", "?"}, Params: array{"john.doe@acme.com"}}
	first, _, err := query.BuildQuery(userRepository)
	if err != nil {
		t.Fatal(err)
	}
	t.Log("building a query leaves its tokens untouched")
	if expected, actual := "Email", query.Where[0]; expected != actual {
		t.Fatalf("the first where token should still be '%s', got '%s'", expected, actual)
	}
	second, _, err := query.BuildQuery(userRepository)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Fatalf("building the same query twice should produce the same statement, got :\n%s\n%s", first, second)
	}
	result := []*User{}
	if err := userRepository.FindBy(query, &result); err != nil {
		t.Fatal(err)
	}
	if err := userRepository.FindBy(query, &result); err != nil {
		t.Fatal(err)
	}
}

func TestQueryWhereErrors(t *testing.T) {
	orm := GetORM(t)
	userRepository := orm.MustGetRepository(new(User))
	t.Log("an operator cannot start a where clause")
	if _, _, err := (Query{Where: []string{"=", "?"}}).BuildQuery(userRepository); err == nil {
		t.Fatal("BuildQuery should fail on a leading operator")
	}
	t.Log("placeholders and params have to match")
	if _, _, err := (Query{Where: []string{"Email", "=", "?"}}).BuildQuery(userRepository); err == nil {
		t.Fatal("BuildQuery should fail on a missing param")
	}
	t.Log("unknown fields are rejected")
	if _, _, err := (Query{Where: []string{"Unknown", "=", "?"}, Params: array{1}}).BuildQuery(userRepository); err == nil {
		t.Fatal("BuildQuery should fail on an unknown field")
	}
}
