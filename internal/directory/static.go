package directory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Snapshot is the full content of a directory: the unit loaded from a
// fixture file and swapped on reload.
type Snapshot struct {
	Users     []UserRecord    `yaml:"users"`
	Apps      []AppRecord     `yaml:"apps"`
	Anomalies []AnomalyRecord `yaml:"anomalies"`
}

func (s Snapshot) Validate() error {
	seenUsers := map[string]bool{}
	for index, user := range s.Users {
		name := strings.TrimSpace(user.Username)
		if name == "" {
			return fmt.Errorf("users[%d]: username is required", index)
		}
		if seenUsers[name] {
			return fmt.Errorf("users[%d]: duplicate username %q", index, name)
		}
		seenUsers[name] = true
	}
	seenApps := map[string]bool{}
	for index, app := range s.Apps {
		name := strings.TrimSpace(app.Name)
		if name == "" {
			return fmt.Errorf("apps[%d]: name is required", index)
		}
		if seenApps[name] {
			return fmt.Errorf("apps[%d]: duplicate app %q", index, name)
		}
		seenApps[name] = true
	}
	for index, anomaly := range s.Anomalies {
		if strings.TrimSpace(anomaly.Username) == "" {
			return fmt.Errorf("anomalies[%d]: username is required", index)
		}
		if anomaly.Score < 0 || anomaly.Score > 1 {
			return fmt.Errorf("anomalies[%d]: score %.2f outside [0,1]", index, anomaly.Score)
		}
	}
	return nil
}

// Static serves an in-memory snapshot. Replace swaps it atomically.
type Static struct {
	mu        sync.RWMutex
	users     map[string]UserRecord
	apps      map[string]AppRecord
	anomalies []AnomalyRecord
}

func NewStatic(snapshot Snapshot) *Static {
	s := &Static{}
	s.Replace(snapshot)
	return s
}

func (s *Static) Replace(snapshot Snapshot) {
	users := make(map[string]UserRecord, len(snapshot.Users))
	for _, user := range snapshot.Users {
		users[strings.TrimSpace(user.Username)] = user
	}
	apps := make(map[string]AppRecord, len(snapshot.Apps))
	for _, app := range snapshot.Apps {
		apps[strings.TrimSpace(app.Name)] = app
	}
	anomalies := make([]AnomalyRecord, len(snapshot.Anomalies))
	copy(anomalies, snapshot.Anomalies)

	s.mu.Lock()
	s.users = users
	s.apps = apps
	s.anomalies = anomalies
	s.mu.Unlock()
}

func (s *Static) LookupUser(ctx context.Context, username string) (UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.users[username]
	if !ok {
		return UserRecord{}, fmt.Errorf("user %q: %w", username, ErrNotFound)
	}
	return record, nil
}

func (s *Static) LookupApp(ctx context.Context, name string) (AppRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.apps[name]
	if !ok {
		return AppRecord{}, fmt.Errorf("app %q: %w", name, ErrNotFound)
	}
	return record, nil
}

func (s *Static) ListAnomalies(ctx context.Context) ([]AnomalyRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]AnomalyRecord, len(s.anomalies))
	copy(out, s.anomalies)
	return out, nil
}

// Sample returns the built-in demo directory.
func Sample() Snapshot {
	lastLogon := time.Date(2025, time.September, 22, 8, 30, 0, 0, time.UTC)
	supervisor := SupportContact{Role: "Supervisor", Name: "Jane Doe", Email: "jane.doe@example.com"}
	return Snapshot{
		Users: []UserRecord{
			{
				Username:    "alice.w",
				FullName:    "Alice Walker",
				Status:      "Enabled",
				LastLogon:   lastLogon,
				Groups:      []string{"Finance", "VPN-Users"},
				VPNAssigned: true,
				Applications: []Entitlement{
					{Name: "Payroll", Status: "Active", AdminURL: "https://payroll.example/admin"},
					{Name: "CRM", Status: "Inactive", AdminURL: "https://crm.example/admin"},
				},
				SupportContacts: []SupportContact{supervisor},
			},
			{
				Username:    "dan.j",
				FullName:    "Dan Jones",
				Status:      "Enabled",
				LastLogon:   lastLogon.AddDate(0, 0, -130),
				Groups:      []string{"Domain-Admins", "VPN-Users"},
				VPNAssigned: true,
				Applications: []Entitlement{
					{Name: "SeaBaas", Status: "Active", AdminURL: "https://seabaas.example/admin"},
				},
				SupportContacts: []SupportContact{supervisor},
			},
			{
				Username:    "sam.k",
				FullName:    "Sam Kim",
				Status:      "Enabled",
				LastLogon:   lastLogon.AddDate(0, 0, -2),
				Groups:      []string{"Operations"},
				VPNAssigned: false,
				Applications: []Entitlement{
					{Name: "Xplorer", Status: "Active", AdminURL: "https://xplorer.example/admin"},
					{Name: "CRM", Status: "Active", AdminURL: "https://crm.example/admin"},
				},
				SupportContacts: []SupportContact{supervisor},
			},
			{
				Username:    "accessadmin",
				FullName:    "Access Admin",
				Status:      "Enabled",
				LastLogon:   lastLogon,
				Groups:      []string{"Access-Engineering"},
				VPNAssigned: true,
			},
		},
		Apps: []AppRecord{
			{
				Name:         "Payroll",
				AdminURL:     "https://payroll.example/admin",
				UserURL:      "https://payroll.example",
				Description:  "This app is used for bulk journal posting",
				DBType:       "Oracle",
				Owner:        "Jane Doe; e-operations; branch",
				SupportEmail: "payroll-support@example.com",
			},
			{
				Name:         "CRM",
				AdminURL:     "https://crm.example/admin",
				UserURL:      "https://crm.example",
				Description:  "Customer relationship management",
				DBType:       "PostgreSQL",
				Owner:        "Sales operations",
				ThirdParty:   true,
				SupportEmail: "crm-support@example.com",
			},
			{
				Name:         "SeaBaas",
				AdminURL:     "https://seabaas.example/admin",
				UserURL:      "https://seabaas.example",
				Description:  "This app is used for Core Banking operations.",
				DBType:       "PostgreSQL",
				Owner:        "Core banking platform team",
				SupportEmail: "seabaas-support@example.com",
			},
			{
				Name:         "Xplorer",
				AdminURL:     "https://xplorer.example/admin",
				UserURL:      "https://xplorer.example",
				Description:  "Reporting and data exploration",
				DBType:       "SQL Server",
				Owner:        "Data office",
				SupportEmail: "xplorer-support@example.com",
			},
		},
		Anomalies: []AnomalyRecord{
			{
				Username:          "dan.j",
				Score:             0.92,
				Reason:            "Admin group assigned but last logon > 120 days",
				RecommendedAction: "Disable or review",
			},
			{
				Username:          "sam.k",
				Score:             0.87,
				Reason:            "Multiple suspicious app roles added in <7 days",
				RecommendedAction: "Revoke roles & escalate",
			},
		},
	}
}
