// Package directory serves the user, application, and anomaly records the
// bot looks up. The records are sample data; a real identity provider would
// implement Provider.
package directory

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("directory record not found")

type Provider interface {
	LookupUser(ctx context.Context, username string) (UserRecord, error)
	LookupApp(ctx context.Context, name string) (AppRecord, error)
	ListAnomalies(ctx context.Context) ([]AnomalyRecord, error)
}

type UserRecord struct {
	Username        string           `json:"username" yaml:"username"`
	FullName        string           `json:"full_name" yaml:"full_name"`
	Status          string           `json:"status" yaml:"status"`
	LastLogon       time.Time        `json:"last_logon" yaml:"last_logon"`
	Groups          []string         `json:"groups" yaml:"groups"`
	VPNAssigned     bool             `json:"vpn_assigned" yaml:"vpn_assigned"`
	Applications    []Entitlement    `json:"applications" yaml:"applications"`
	SupportContacts []SupportContact `json:"support_contacts" yaml:"support_contacts"`
}

type Entitlement struct {
	Name     string `json:"name" yaml:"name"`
	Status   string `json:"status" yaml:"status"`
	AdminURL string `json:"admin_url" yaml:"admin_url"`
}

type SupportContact struct {
	Role  string `json:"role" yaml:"role"`
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

type AppRecord struct {
	Name         string `json:"name" yaml:"name"`
	AdminURL     string `json:"admin_url" yaml:"admin_url"`
	UserURL      string `json:"user_url" yaml:"user_url"`
	Description  string `json:"description" yaml:"description"`
	DBType       string `json:"db_type" yaml:"db_type"`
	Owner        string `json:"owner" yaml:"owner"`
	ThirdParty   bool   `json:"third_party" yaml:"third_party"`
	SupportEmail string `json:"support_email" yaml:"support_email"`
}

type AnomalyRecord struct {
	Username          string  `json:"username" yaml:"username"`
	Score             float64 `json:"score" yaml:"score"`
	Reason            string  `json:"reason" yaml:"reason"`
	RecommendedAction string  `json:"recommended_action" yaml:"recommended_action"`
}

type Tier string

const (
	TierHigh   Tier = "high"
	TierMedium Tier = "medium"
	TierLow    Tier = "low"
)

// RiskTier buckets an anomaly score. Both boundaries are strict: 0.9 is
// medium and 0.7 is low.
func RiskTier(score float64) Tier {
	switch {
	case score > 0.9:
		return TierHigh
	case score > 0.7:
		return TierMedium
	default:
		return TierLow
	}
}

func (a AnomalyRecord) Tier() Tier {
	return RiskTier(a.Score)
}
