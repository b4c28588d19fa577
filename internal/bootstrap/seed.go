package bootstrap

import (
	"bytes"
	"context"
	_ "embed"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nexuscrm/salescrm/internal/application/services"
	"github.com/nexuscrm/salescrm/internal/domain/models"
	"github.com/nexuscrm/salescrm/pkg/utils"
)

//go:embed seed_data.yaml
var defaultSeedYAML []byte

// SeedData is a fixture file. Records point at each other and at their
// owner through refs and emails instead of ids.
type SeedData struct {
	Users      []SeedUser     `yaml:"users"`
	Companies  []SeedCompany  `yaml:"companies"`
	Contacts   []SeedContact  `yaml:"contacts"`
	Deals      []SeedDeal     `yaml:"deals"`
	Activities []SeedActivity `yaml:"activities"`
	Tasks      []SeedTask     `yaml:"tasks"`
}

type SeedUser struct {
	Email    string `yaml:"email"`
	Password string `yaml:"password"`
	FullName string `yaml:"full_name"`
	Role     string `yaml:"role"`
}

// SeedRef names a record for later references and sets its owner. Owner is
// a user email; empty means the first seeded user.
type SeedRef struct {
	Ref   string `yaml:"ref"`
	Owner string `yaml:"owner"`
}

type SeedCompany struct {
	SeedRef             `yaml:",inline"`
	models.CompanyInput `yaml:",inline"`
}

type SeedContact struct {
	SeedRef             `yaml:",inline"`
	Company             string `yaml:"company"`
	models.ContactInput `yaml:",inline"`
}

type SeedDeal struct {
	SeedRef          `yaml:",inline"`
	Company          string `yaml:"company"`
	Contact          string `yaml:"contact"`
	models.DealInput `yaml:",inline"`
}

type SeedActivity struct {
	SeedRef              `yaml:",inline"`
	Company              string `yaml:"company"`
	Contact              string `yaml:"contact"`
	Deal                 string `yaml:"deal"`
	models.ActivityInput `yaml:",inline"`
}

type SeedTask struct {
	SeedRef `yaml:",inline"`
	Contact string `yaml:"contact"`
	Deal    string `yaml:"deal"`

	// DueInDays sets the due date relative to seeding time.
	DueInDays        *int `yaml:"due_in_days"`
	models.TaskInput `yaml:",inline"`
}

// SeedResult counts what Seed created.
type SeedResult struct {
	Users      int `json:"users"`
	Companies  int `json:"companies"`
	Contacts   int `json:"contacts"`
	Deals      int `json:"deals"`
	Activities int `json:"activities"`
	Tasks      int `json:"tasks"`
}

// LoadSeed reads a fixture file. An empty path returns the built-in demo data.
func LoadSeed(path string) (*SeedData, error) {
	raw := defaultSeedYAML
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read seed file: %w", err)
		}
		raw = b
	}
	return ParseSeed(raw)
}

// ParseSeed decodes fixture YAML. Unknown keys are rejected.
func ParseSeed(raw []byte) (*SeedData, error) {
	var data SeedData
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to parse seed data: %w", err)
	}
	if len(data.Users) == 0 {
		return nil, fmt.Errorf("seed data needs at least one user")
	}
	return &data, nil
}

type seeder struct {
	now    time.Time
	owners map[string]*models.UserSession
	first  *models.UserSession
	refs   map[string]map[string]string // kind -> ref -> id
}

// Seed provisions the users, then creates the records through the services
// so events, timelines and indexing behave as for API writes. Users that
// already exist are reused. Records are always created, so seeding twice
// duplicates them.
func Seed(ctx context.Context, sm *services.ServiceManager, data *SeedData) (*SeedResult, error) {
	s := &seeder{
		now:    time.Now().UTC(),
		owners: make(map[string]*models.UserSession),
		refs:   make(map[string]map[string]string),
	}
	res := &SeedResult{}

	for _, u := range data.Users {
		p, err := sm.Auth.Provision(ctx, models.RegisterInput{Email: u.Email, Password: u.Password, FullName: u.FullName}, u.Role)
		if err != nil {
			return res, fmt.Errorf("user %s: %w", u.Email, err)
		}
		session := &models.UserSession{ID: p.ID, Email: p.Email, Name: p.DisplayName(), Role: p.Role}
		s.owners[p.Email] = session
		if s.first == nil {
			s.first = session
		}
		res.Users++
	}

	for _, c := range data.Companies {
		owner, err := s.owner(c.Owner)
		if err != nil {
			return res, err
		}
		created, err := sm.Companies.Create(ctx, owner, c.CompanyInput)
		if err != nil {
			return res, fmt.Errorf("company %q: %w", c.Ref, err)
		}
		s.remember("company", c.Ref, created.ID)
		res.Companies++
	}

	for _, c := range data.Contacts {
		owner, err := s.owner(c.Owner)
		if err != nil {
			return res, err
		}
		in := c.ContactInput
		if in.CompanyID, err = s.resolve("company", c.Company, in.CompanyID); err != nil {
			return res, err
		}
		created, err := sm.Contacts.Create(ctx, owner, in)
		if err != nil {
			return res, fmt.Errorf("contact %q: %w", c.Ref, err)
		}
		s.remember("contact", c.Ref, created.ID)
		res.Contacts++
	}

	for _, d := range data.Deals {
		owner, err := s.owner(d.Owner)
		if err != nil {
			return res, err
		}
		in := d.DealInput
		if in.CompanyID, err = s.resolve("company", d.Company, in.CompanyID); err != nil {
			return res, err
		}
		if in.ContactID, err = s.resolve("contact", d.Contact, in.ContactID); err != nil {
			return res, err
		}
		created, err := sm.Deals.Create(ctx, owner, in)
		if err != nil {
			return res, fmt.Errorf("deal %q: %w", d.Ref, err)
		}
		s.remember("deal", d.Ref, created.ID)
		res.Deals++
	}

	for _, a := range data.Activities {
		owner, err := s.owner(a.Owner)
		if err != nil {
			return res, err
		}
		in := a.ActivityInput
		if in.CompanyID, err = s.resolve("company", a.Company, in.CompanyID); err != nil {
			return res, err
		}
		if in.ContactID, err = s.resolve("contact", a.Contact, in.ContactID); err != nil {
			return res, err
		}
		if in.DealID, err = s.resolve("deal", a.Deal, in.DealID); err != nil {
			return res, err
		}
		created, err := sm.Activities.Create(ctx, owner, in)
		if err != nil {
			return res, fmt.Errorf("activity %q: %w", a.Ref, err)
		}
		s.remember("activity", a.Ref, created.ID)
		res.Activities++
	}

	for _, t := range data.Tasks {
		owner, err := s.owner(t.Owner)
		if err != nil {
			return res, err
		}
		in := t.TaskInput
		if in.ContactID, err = s.resolve("contact", t.Contact, in.ContactID); err != nil {
			return res, err
		}
		if in.DealID, err = s.resolve("deal", t.Deal, in.DealID); err != nil {
			return res, err
		}
		if t.DueInDays != nil {
			due := s.now.AddDate(0, 0, *t.DueInDays)
			in.DueDate = &due
		}
		created, err := sm.Tasks.Create(ctx, owner, in)
		if err != nil {
			return res, fmt.Errorf("task %q: %w", t.Ref, err)
		}
		s.remember("task", t.Ref, created.ID)
		res.Tasks++
	}

	zap.L().Info("seed data loaded",
		zap.Int("users", res.Users),
		zap.Int("companies", res.Companies),
		zap.Int("contacts", res.Contacts),
		zap.Int("deals", res.Deals),
		zap.Int("activities", res.Activities),
		zap.Int("tasks", res.Tasks))
	return res, nil
}

func (s *seeder) owner(email string) (*models.UserSession, error) {
	if email == "" {
		return s.first, nil
	}
	if u, ok := s.owners[strings.ToLower(strings.TrimSpace(email))]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("owner %q is not a seeded user", email)
}

func (s *seeder) remember(kind, ref, id string) {
	if ref == "" {
		return
	}
	if s.refs[kind] == nil {
		s.refs[kind] = make(map[string]string)
	}
	s.refs[kind][ref] = id
}

// resolve turns a ref into an id. An explicit id is kept when no ref is given.
func (s *seeder) resolve(kind, ref string, explicit *string) (*string, error) {
	if ref == "" {
		if explicit != nil && !utils.IsValidUUID(*explicit) {
			return nil, fmt.Errorf("%s id %q is not a uuid", kind, *explicit)
		}
		return explicit, nil
	}
	id, ok := s.refs[kind][ref]
	if !ok {
		return nil, fmt.Errorf("unknown %s ref %q", kind, ref)
	}
	return &id, nil
}
