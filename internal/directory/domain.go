package directory

// Area is an organizational unit in the external directory.
type Area struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Position is a job position in the external directory.
type Position struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// Person is a personnel record in the external directory.
type Person struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Document  string `json:"document,omitempty"`
}

// Fallback records returned when both the cache and the upstream directory
// are unavailable. Directory reads degrade to these defaults instead of
// failing the caller; core account and grant mutations never do this.
func fallbackArea(id int64) Area {
	return Area{ID: id, Name: "Unassigned"}
}

func fallbackPosition(id int64) Position {
	return Position{ID: id, Name: "Unassigned"}
}

func fallbackPerson(id int64) Person {
	return Person{ID: id, FirstName: "Unknown", LastName: "Person"}
}
