package mockapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"extraction-api/internal/source"
)

var firstNames = []string{
	"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael",
	"Linda", "David", "Elizabeth", "William", "Barbara", "Richard", "Susan",
	"Joseph", "Jessica", "Thomas", "Sarah", "Daniel", "Karen",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller",
	"Davis", "Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez",
	"Wilson", "Anderson", "Thomas", "Taylor", "Moore", "Jackson", "Martin",
}

var companies = []string{
	"Acme Corp", "Globex", "Initech", "Umbrella Inc", "Stark Industries",
	"Wayne Enterprises", "Hooli", "Vandelay Industries", "Pied Piper",
}

var roles = []string{"admin", "member", "viewer"}

// generate produces one plausible record for the given type, matching the
// shapes the real service returns. Unknown types fall back to contacts.
func (a *API) generate(recordType string, i int) source.Record {
	a.mu.Lock()
	defer a.mu.Unlock()

	first := firstNames[a.rnd.Intn(len(firstNames))]
	last := lastNames[a.rnd.Intn(len(lastNames))]
	id := uuid.NewString()
	email := fmt.Sprintf("%s.%s.%s@example.com", strings.ToLower(first), strings.ToLower(last), id[:8])
	now := time.Now().UTC().Format(time.RFC3339)

	if recordType == source.RecordTypeUsers {
		return source.Record{
			"id_from_service": "user_" + id,
			"email":           email,
			"first_name":      first,
			"last_name":       last,
			"username":        fmt.Sprintf("%s_%s", strings.ToLower(first), id[:6]),
			"role":            roles[a.rnd.Intn(len(roles))],
			"is_active":       a.rnd.Intn(10) != 0,
			"created_at":      now,
		}
	}

	rec := source.Record{
		"id_from_service": "contact_" + id,
		"email":           email,
		"first_name":      first,
		"last_name":       last,
		"phone":           nil,
		"company":         nil,
		"created_at":      now,
		"updated_at":      now,
	}
	// Not every contact carries a phone or company, like real CRM data.
	if i%3 == 0 {
		rec["phone"] = fmt.Sprintf("+1-555-%03d-%04d", a.rnd.Intn(1000), a.rnd.Intn(10000))
	}
	if i%2 == 0 {
		rec["company"] = companies[a.rnd.Intn(len(companies))]
	}
	return rec
}

