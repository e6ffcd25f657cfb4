// Package schema declares the content model served by shelf: users, posts,
// tags and todos, with their fields, relationships, access rules and admin
// hints.
package schema

import (
	"github.com/mesh-intelligence/shelf/pkg/document"
	"github.com/mesh-intelligence/shelf/pkg/types"
)

// List names.
const (
	User = "User"
	Post = "Post"
	Tag  = "Tag"
	Todo = "Todo"
)

// Post status values.
const (
	StatusPublished = "published"
	StatusDraft     = "draft"
)

// Todo priority values.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// loginOnly gates every operation on an authenticated session.
var loginOnly = types.Access{
	Operation: types.OperationAccess{
		Query:  IsLogin,
		Create: IsLogin,
		Update: IsLogin,
		Delete: IsLogin,
	},
}

// Lists returns the content schema. Each call builds a fresh declaration.
func Lists() *types.Schema {
	s, err := types.NewSchema(userList(), postList(), tagList(), todoList())
	if err != nil {
		// The declaration is static; a failure here is a programming error.
		panic(err)
	}
	return s
}

func userList() *types.List {
	return &types.List{
		Name: User,
		Access: types.Access{
			Operation: types.OperationAccess{
				Create: IsAdmin,
				Update: IsAdmin,
				Delete: IsAdmin,
			},
		},
		Fields: []types.Field{
			{Name: "name", Type: types.FieldText, Validation: types.Validation{IsRequired: true}},
			{
				Name:         "email",
				Type:         types.FieldText,
				Validation:   types.Validation{IsRequired: true},
				IsIndexed:    types.IndexUnique,
				IsFilterable: true,
			},
			{Name: "password", Type: types.FieldPassword, Validation: types.Validation{IsRequired: true}},
			{Name: "isAdmin", Type: types.FieldCheckbox},
			{Name: "posts", Type: types.FieldRelationship, Ref: Post + ".author", Many: true},
			{Name: "todos", Type: types.FieldRelationship, Ref: Todo + ".assignedTo", Many: true},
		},
		UI: types.ListUI{
			ListView: types.ListView{
				InitialColumns: []string{"name", "email", "isAdmin", "posts"},
			},
		},
	}
}

func postList() *types.List {
	return &types.List{
		Name:   Post,
		Access: loginOnly,
		Fields: []types.Field{
			{Name: "title", Type: types.FieldText},
			{
				Name: "status",
				Type: types.FieldSelect,
				Options: []types.Option{
					{Label: "Published", Value: StatusPublished},
					{Label: "Draft", Value: StatusDraft},
				},
				DefaultValue: StatusDraft,
				UI:           types.FieldUI{DisplayMode: types.DisplaySegmentedControl},
			},
			{
				Name: "content",
				Type: types.FieldDocument,
				Document: &document.Config{
					Formatting: true,
					Layouts: [][]int{
						{1, 1},
						{1, 1, 1},
						{2, 1},
						{1, 2},
						{1, 2, 1},
					},
					Links:    true,
					Dividers: true,
				},
			},
			{Name: "publishDate", Type: types.FieldTimestamp},
			{Name: "author", Type: types.FieldRelationship, Ref: User + ".posts"},
			{
				Name: "tags",
				Type: types.FieldRelationship,
				Ref:  Tag + ".posts",
				Many: true,
				UI: types.FieldUI{
					DisplayMode:   types.DisplayCards,
					CardFields:    []string{"name"},
					InlineEdit:    &types.InlineFields{Fields: []string{"name"}},
					LinkToItem:    true,
					InlineConnect: true,
					InlineCreate:  &types.InlineFields{Fields: []string{"name"}},
				},
			},
		},
	}
}

func tagList() *types.List {
	return &types.List{
		Name:   Tag,
		Access: loginOnly,
		UI:     types.ListUI{IsHidden: true},
		Fields: []types.Field{
			{Name: "name", Type: types.FieldText},
			{Name: "posts", Type: types.FieldRelationship, Ref: Post + ".tags", Many: true},
		},
	}
}

func todoList() *types.List {
	return &types.List{
		Name:   Todo,
		Access: loginOnly,
		Fields: []types.Field{
			{Name: "label", Type: types.FieldText, Validation: types.Validation{IsRequired: true}},
			{
				Name:       "priority",
				Type:       types.FieldSelect,
				SelectType: types.SelectEnum,
				Options: []types.Option{
					{Label: "Low", Value: PriorityLow},
					{Label: "Medium", Value: PriorityMedium},
					{Label: "High", Value: PriorityHigh},
				},
			},
			{Name: "isComplete", Type: types.FieldCheckbox},
			{Name: "assignedTo", Type: types.FieldRelationship, Ref: User + ".todos"},
			{Name: "finishBy", Type: types.FieldTimestamp},
		},
	}
}
