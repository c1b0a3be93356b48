package query

type FieldKind int

const (
	KindString FieldKind = iota
	KindBool
	KindTime
	// KindIDSet is a set of ids stored outside the entity row (user pendingTasks).
	KindIDSet
)

type Field struct {
	Name   string
	Column string
	Kind   FieldKind
}

// FieldSet maps the wire names clients may use to the fields they address.
type FieldSet map[string]Field

func (fs FieldSet) Lookup(name string) (Field, bool) {
	if name == "id" {
		name = "_id"
	}
	f, ok := fs[name]
	return f, ok
}

var TaskFields = FieldSet{
	"_id":              {Name: "_id", Column: "id", Kind: KindString},
	"name":             {Name: "name", Column: "name", Kind: KindString},
	"description":      {Name: "description", Column: "description", Kind: KindString},
	"deadline":         {Name: "deadline", Column: "deadline", Kind: KindTime},
	"completed":        {Name: "completed", Column: "completed", Kind: KindBool},
	"assignedUser":     {Name: "assignedUser", Column: "assigned_user", Kind: KindString},
	"assignedUserName": {Name: "assignedUserName", Column: "assigned_user_name", Kind: KindString},
	"dateCreated":      {Name: "dateCreated", Column: "date_created", Kind: KindTime},
}

var UserFields = FieldSet{
	"_id":          {Name: "_id", Column: "id", Kind: KindString},
	"name":         {Name: "name", Column: "name", Kind: KindString},
	"email":        {Name: "email", Column: "email", Kind: KindString},
	"pendingTasks": {Name: "pendingTasks", Kind: KindIDSet},
	"dateCreated":  {Name: "dateCreated", Column: "date_created", Kind: KindTime},
}
