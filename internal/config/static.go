package config

import (
	"errors"
	"io/fs"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// StaticConfig holds settings that rarely change between deployments.
type StaticConfig struct {
	CORS     CORSConfig     `yaml:"cors"`
	Schedule ScheduleConfig `yaml:"schedule" validate:"required"`
}

// CORSConfig lists the browser origins allowed to call the API.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" validate:"dive,url"`
}

// ScheduleConfig names the bakery parts and the people the daily view
// reports on.
type ScheduleConfig struct {
	Parts           []string `yaml:"parts" validate:"min=1,dive,required"`
	PartnerPart     string   `yaml:"partner_part" validate:"required"`
	DefaultPartner  string   `yaml:"default_partner" validate:"required"`
	TrackedEmployee string   `yaml:"tracked_employee" validate:"required"`
}

// DefaultStatic is used when no config file exists, and as the base that a
// file overrides.
func DefaultStatic() StaticConfig {
	return StaticConfig{
		CORS: CORSConfig{
			AllowedOrigins: []string{
				"http://localhost:3000",
				"https://commute.yuruppang.store",
			},
		},
		Schedule: ScheduleConfig{
			Parts:           []string{"샌드위치", "오븐", "반죽", "빵", "시야기", "케이크"},
			PartnerPart:     "시야기",
			DefaultPartner:  "김지윤",
			TrackedEmployee: "유루디아",
		},
	}
}

// LoadStatic reads path over the defaults and validates the result. A
// missing file is not an error.
func LoadStatic(path string) (StaticConfig, error) {
	cfg := DefaultStatic()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return StaticConfig{}, err
	}
	return parseStatic(data, cfg)
}

func parseStatic(data []byte, base StaticConfig) (StaticConfig, error) {
	cfg := base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return StaticConfig{}, err
	}
	if err := validator.New().Struct(cfg); err != nil {
		return StaticConfig{}, err
	}
	return cfg, nil
}
