package data

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogYAML []byte

type CatalogEntry struct {
	Key string `yaml:"key" json:"key"`
	En  string `yaml:"en" json:"en"`
	Bn  string `yaml:"bn" json:"bn"`
}

// Name returns the entry's display name in lang, English unless lang is "bn".
func (e CatalogEntry) Name(lang string) string {
	if lang == "bn" {
		return e.Bn
	}
	return e.En
}

// Catalog lists the crops, storage methods and districts the app knows about.
type Catalog struct {
	Crops          []CatalogEntry `yaml:"crops" json:"crops"`
	StorageMethods []CatalogEntry `yaml:"storageMethods" json:"storageMethods"`
	Districts      []string       `yaml:"districts" json:"districts"`
}

func LoadCatalog() (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(catalogYAML, &c); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return &c, nil
}

// CropName falls back to the key for crops not in the catalog.
func (c *Catalog) CropName(key, lang string) string {
	for _, crop := range c.Crops {
		if crop.Key == key {
			return crop.Name(lang)
		}
	}
	return key
}
