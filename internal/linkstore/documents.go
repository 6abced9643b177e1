package linkstore

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"crosslink/internal/services"
)

const (
	castDocumentVersion = 1
	tagsDocumentVersion = 1
)

type castDocument struct {
	Version int         `json:"version"`
	Main    []CastEntry `json:"main"`
	Support []CastEntry `json:"support"`
	Guest   []CastEntry `json:"guest"`
}

type tagsDocument struct {
	Version int      `json:"version"`
	Items   []string `json:"items"`
}

func encodeCast(cast *CastBuckets) (sql.NullString, error) {
	if cast == nil {
		return sql.NullString{}, nil
	}
	doc := castDocument{
		Version: castDocumentVersion,
		Main:    nonNil(cast.Main),
		Support: nonNil(cast.Support),
		Guest:   nonNil(cast.Guest),
	}
	data, err := json.Marshal(doc)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode cast document: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeCast(raw sql.NullString) (*CastBuckets, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var doc castDocument
	if err := json.Unmarshal([]byte(raw.String), &doc); err != nil {
		return nil, services.Wrap(services.ErrCorruptRecord, "linkstore", "decode cast", "invalid cast document", err)
	}
	if doc.Version != castDocumentVersion {
		return nil, services.Wrap(services.ErrCorruptRecord, "linkstore", "decode cast",
			fmt.Sprintf("unsupported cast document version %d", doc.Version), nil)
	}
	return &CastBuckets{Main: doc.Main, Support: doc.Support, Guest: doc.Guest}, nil
}

func encodeTags(tags []string) (sql.NullString, error) {
	if tags == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tagsDocument{Version: tagsDocumentVersion, Items: tags})
	if err != nil {
		return sql.NullString{}, fmt.Errorf("encode tags document: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

func decodeTags(raw sql.NullString) ([]string, error) {
	if !raw.Valid || raw.String == "" {
		return nil, nil
	}
	var doc tagsDocument
	if err := json.Unmarshal([]byte(raw.String), &doc); err != nil {
		return nil, services.Wrap(services.ErrCorruptRecord, "linkstore", "decode tags", "invalid tags document", err)
	}
	if doc.Version != tagsDocumentVersion {
		return nil, services.Wrap(services.ErrCorruptRecord, "linkstore", "decode tags",
			fmt.Sprintf("unsupported tags document version %d", doc.Version), nil)
	}
	return doc.Items, nil
}

func nonNil(entries []CastEntry) []CastEntry {
	if entries == nil {
		return []CastEntry{}
	}
	return entries
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

// enrichmentColumns holds the encoded form of an Enrichment.
type enrichmentColumns struct {
	rating     sql.NullFloat64
	rank       sql.NullInt64
	popularity sql.NullInt64
	tags       sql.NullString
	cast       sql.NullString
}

func encodeEnrichment(e Enrichment) (enrichmentColumns, error) {
	tags, err := encodeTags(e.Tags)
	if err != nil {
		return enrichmentColumns{}, err
	}
	cast, err := encodeCast(e.Cast)
	if err != nil {
		return enrichmentColumns{}, err
	}
	return enrichmentColumns{
		rating:     nullFloat(e.Rating),
		rank:       nullInt(e.Rank),
		popularity: nullInt(e.Popularity),
		tags:       tags,
		cast:       cast,
	}, nil
}

func (c enrichmentColumns) decode() (Enrichment, error) {
	tags, err := decodeTags(c.tags)
	if err != nil {
		return Enrichment{}, err
	}
	cast, err := decodeCast(c.cast)
	if err != nil {
		return Enrichment{}, err
	}
	return Enrichment{
		Rating:     floatPtr(c.rating),
		Rank:       intPtr(c.rank),
		Popularity: intPtr(c.popularity),
		Tags:       tags,
		Cast:       cast,
	}, nil
}
