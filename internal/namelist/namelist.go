// Package namelist supplies the restaurant names the ingest job resolves.
package namelist

import (
	"errors"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/yourorg/places-api/internal/canon"
)

// Default is used when no names file is configured.
var Default = []string{
	"Katz's Delicatessen",
	"Joe's Pizza",
	"Peter Luger Steak House",
	"Lombardi's Pizza",
	"Russ & Daughters",
	"Carbone",
	"Le Bernardin",
	"Shake Shack Madison Square Park",
	"Xi'an Famous Foods",
	"Los Tacos No. 1",
}

type file struct {
	Names []string `toml:"names"`
}

// Load reads a TOML file of the form `names = ["...", ...]`. An empty path
// returns Default. The result is canonicalized and never empty.
func Load(path string) ([]string, error) {
	if path == "" {
		return canon.Names(Default), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read names file: %w", err)
	}
	return Parse(raw)
}

func Parse(raw []byte) ([]string, error) {
	var f file
	if err := toml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse names file: %w", err)
	}
	names := canon.Names(f.Names)
	if len(names) == 0 {
		return nil, errors.New("names file lists no names")
	}
	return names, nil
}
