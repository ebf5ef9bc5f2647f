package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/pharmadist/internal/logging"
)

// Setting keys.
const (
	SettingKey     = "key"
	SettingValue   = "value"
	SettingCompany = "company"
)

// setting returns the record stored under key, or ErrNotFound.
func (s *Service) setting(ctx context.Context, key string) (Table, Record, error) {
	_, table, err := s.table(TableSettings)
	if err != nil {
		return nil, Record{}, err
	}
	recs, err := table.PrefixScan(ctx, SettingKey, key, 16)
	if err != nil {
		return table, Record{}, fmt.Errorf("read setting %s: %w", key, err)
	}
	for _, rec := range recs {
		if rec.Text(SettingKey) == key {
			return table, rec, nil
		}
	}
	return table, Record{}, ErrNotFound
}

// Company returns the saved company profile, or DefaultCompany when none
// has been saved.
func (s *Service) Company(ctx context.Context) (CompanyProfile, error) {
	_, rec, err := s.setting(ctx, SettingCompany)
	if errors.Is(err, ErrNotFound) {
		return DefaultCompany, nil
	}
	if err != nil {
		return CompanyProfile{}, err
	}

	data, err := json.Marshal(rec.Values[SettingValue])
	if err != nil {
		return CompanyProfile{}, fmt.Errorf("encode company profile: %w", err)
	}
	var profile CompanyProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return CompanyProfile{}, fmt.Errorf("decode company profile: %w", err)
	}
	return profile, nil
}

// SaveCompany stores the company profile, replacing any saved one.
func (s *Service) SaveCompany(ctx context.Context, profile CompanyProfile) error {
	if profile.Name == "" {
		return fmt.Errorf("company name is required")
	}
	value, err := ToValues(profile)
	if err != nil {
		return err
	}

	table, rec, err := s.setting(ctx, SettingCompany)
	switch {
	case errors.Is(err, ErrNotFound):
		_, err = table.BulkInsert(ctx, []Values{{SettingKey: SettingCompany, SettingValue: map[string]any(value)}})
	case err == nil:
		err = table.Update(ctx, rec.ID, Values{SettingValue: map[string]any(value)})
	}
	if err != nil {
		return fmt.Errorf("save company profile: %w", err)
	}

	logging.FromContext(ctx).Info("company profile saved", "name", profile.Name, "state_code", profile.StateCode)
	return nil
}

// Reset wipes products, invoices and parties. Settings survive.
func (s *Service) Reset(ctx context.Context) error {
	for _, name := range []string{TableProducts, TableInvoices, TableParties} {
		_, table, err := s.table(name)
		if err != nil {
			return err
		}
		if err := table.Clear(ctx); err != nil {
			return fmt.Errorf("clear %s: %w", name, err)
		}
	}
	logging.FromContext(ctx).Warn("data reset", "tables", "products,invoices,parties")
	return nil
}
