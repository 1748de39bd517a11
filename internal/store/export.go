// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package store

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/topic-scout/pkg/types"
)

// Export holds a topic and its merged entities for file export.
type Export struct {
	Topic    types.Topic          `json:"topic" yaml:"topic"`
	Entities []types.MergedEntity `json:"entities" yaml:"entities"`
}

// ExportYAML writes a topic's merged entities as YAML to w, highest
// relevance first.
func (s *Store) ExportYAML(ctx context.Context, topicID string, w io.Writer) error {
	export, err := s.export(ctx, topicID)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(export)
	if err != nil {
		return fmt.Errorf("marshaling YAML: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// ExportJSON writes a topic's merged entities as indented JSON to w.
func (s *Store) ExportJSON(ctx context.Context, topicID string, w io.Writer) error {
	export, err := s.export(ctx, topicID)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

func (s *Store) export(ctx context.Context, topicID string) (Export, error) {
	topic, err := s.GetTopic(ctx, topicID)
	if err != nil {
		return Export{}, fmt.Errorf("loading topic %s: %w", topicID, err)
	}
	entities, err := s.EntitiesForTopic(ctx, topicID)
	if err != nil {
		return Export{}, err
	}
	return Export{Topic: topic, Entities: entities}, nil
}
