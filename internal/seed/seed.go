// Package seed loads reference data and starter users from YAML.
package seed

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"ghg-workflow-backend/internal/application/user"
	"ghg-workflow-backend/internal/domain"
	"ghg-workflow-backend/internal/pkg/constants"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

//go:embed default.yaml
var Default []byte

type File struct {
	DefaultPassword string              `yaml:"default_password"`
	Users           []UserSeed          `yaml:"users"`
	ReasonCodes     []domain.ReasonCode `yaml:"reason_codes"`
	Criteria        []domain.Criteria   `yaml:"criteria"`
	Factors         FactorSet           `yaml:"emission_factors"`
}

type UserSeed struct {
	Email    string `yaml:"email"`
	Fullname string `yaml:"fullname"`
	Role     string `yaml:"role"`
	Password string `yaml:"password"`
}

// FactorSet carries defaults applied to every entry that leaves them empty.
type FactorSet struct {
	Source  string       `yaml:"source"`
	Year    int          `yaml:"year"`
	Region  string       `yaml:"region"`
	Entries []FactorSeed `yaml:"entries"`
}

type FactorSeed struct {
	Name     string `yaml:"name"`
	Category string `yaml:"category"`
	Scope    int    `yaml:"scope"`
	Value    string `yaml:"value"`
	Unit     string `yaml:"unit"`
	GWP      string `yaml:"gwp"`
	Region   string `yaml:"region"`
	Source   string `yaml:"source"`
	Year     int    `yaml:"year"`
}

// Result counts rows inserted; existing rows are left untouched.
type Result struct {
	Users       int `json:"users"`
	ReasonCodes int `json:"reason_codes"`
	Criteria    int `json:"criteria"`
	Factors     int `json:"emission_factors"`
}

// Parse decodes a seed file, rejecting unknown keys.
func Parse(data []byte) (*File, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f File
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &f, nil
}

func (fs FactorSet) build() ([]domain.EmissionFactor, error) {
	out := make([]domain.EmissionFactor, 0, len(fs.Entries))
	for i, e := range fs.Entries {
		if e.Name == "" || e.Category == "" || e.Unit == "" {
			return nil, fmt.Errorf("emission factor %d: name, category and unit are required", i)
		}
		if e.Scope < 1 || e.Scope > 3 {
			return nil, fmt.Errorf("emission factor %q: scope must be 1, 2 or 3", e.Name)
		}
		value, err := decimal.NewFromString(e.Value)
		if err != nil || !value.IsPositive() {
			return nil, fmt.Errorf("emission factor %q: value must be a positive decimal", e.Name)
		}
		gwp := decimal.NewFromInt(1)
		if e.GWP != "" {
			if gwp, err = decimal.NewFromString(e.GWP); err != nil {
				return nil, fmt.Errorf("emission factor %q: invalid gwp", e.Name)
			}
		}
		f := domain.EmissionFactor{
			Name:     e.Name,
			Category: e.Category,
			Scope:    e.Scope,
			Value:    value,
			Unit:     e.Unit,
			GWP:      gwp,
			Region:   firstNonEmpty(e.Region, fs.Region, "Global"),
			Source:   firstNonEmpty(e.Source, fs.Source),
			Year:     e.Year,
		}
		if f.Year == 0 {
			f.Year = fs.Year
		}
		out = append(out, f)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func checkCriteria(criteria []domain.Criteria) error {
	for _, c := range criteria {
		if c.ID <= 0 || strings.TrimSpace(c.Category) == "" {
			return fmt.Errorf("criteria %d: a positive id and a category are required", c.ID)
		}
		if c.Scope < 1 || c.Scope > 3 {
			return fmt.Errorf("criteria %d: scope must be 1, 2 or 3", c.ID)
		}
	}
	return nil
}

// Apply inserts everything in f that is not already present, in one transaction.
// Users are keyed by email, reason codes by code, criteria by id, factors by name and region.
func Apply(ctx context.Context, db *gorm.DB, f *File) (*Result, error) {
	factors, err := f.Factors.build()
	if err != nil {
		return nil, err
	}
	if err := checkCriteria(f.Criteria); err != nil {
		return nil, err
	}
	res := &Result{}
	err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, u := range f.Users {
			created, err := seedUser(tx, u, f.DefaultPassword)
			if err != nil {
				return err
			}
			if created {
				res.Users++
			}
		}
		for _, rc := range f.ReasonCodes {
			rc.Code = strings.ToUpper(strings.TrimSpace(rc.Code))
			rc.IsActive = true
			var n int64
			if err := tx.Model(&domain.ReasonCode{}).Where("code = ?", rc.Code).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if err := tx.Create(&rc).Error; err != nil {
				return err
			}
			res.ReasonCodes++
		}
		for _, c := range f.Criteria {
			c.IsActive = true
			var n int64
			if err := tx.Model(&domain.Criteria{}).Where("id = ?", c.ID).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if err := tx.Create(&c).Error; err != nil {
				return err
			}
			res.Criteria++
		}
		for i := range factors {
			var n int64
			if err := tx.Model(&domain.EmissionFactor{}).Where("name = ? AND region = ?", factors[i].Name, factors[i].Region).Count(&n).Error; err != nil {
				return err
			}
			if n > 0 {
				continue
			}
			if err := tx.Create(&factors[i]).Error; err != nil {
				return err
			}
			res.Factors++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int("users", res.Users).Int("reason_codes", res.ReasonCodes).Int("criteria", res.Criteria).Int("emission_factors", res.Factors).Msg("seed applied")
	return res, nil
}

func seedUser(tx *gorm.DB, u UserSeed, defaultPassword string) (bool, error) {
	email := strings.ToLower(strings.TrimSpace(u.Email))
	if email == "" || !constants.IsValidRole(u.Role) {
		return false, fmt.Errorf("seed user %q: email and a valid role are required", u.Email)
	}
	var existing domain.User
	err := tx.Where("email = ?", email).First(&existing).Error
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return false, err
	}
	hash, err := user.HashPassword(firstNonEmpty(u.Password, defaultPassword))
	if err != nil {
		return false, fmt.Errorf("seed user %s: %w", email, err)
	}
	return true, tx.Create(&domain.User{
		Email:        email,
		Fullname:     u.Fullname,
		PasswordHash: hash,
		Role:         u.Role,
		IsActive:     true,
	}).Error
}
