package enrichment

import (
	"math"
	"strconv"
	"strings"

	"crosslink/internal/catalog/mdl"
	"crosslink/internal/linkstore"
)

// ParseRating reads a rating such as "8.7". Anything unparsable yields nil.
func ParseRating(raw string) *float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return nil
	}
	return &value
}

// ParseRank reads the integer out of strings like "#1,234". A value without
// the leading "#" or without digits after it yields nil.
func ParseRank(raw string) *int {
	raw, ok := strings.CutPrefix(strings.TrimSpace(raw), "#")
	if !ok {
		return nil
	}
	raw = strings.ReplaceAll(raw, ",", "")
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return nil
	}
	value, err := strconv.Atoi(raw[:end])
	if err != nil {
		return nil
	}
	return &value
}

// NormalizeCast buckets cast groups into main, support, and guest. Crew
// groups (names not ending in "Role") are dropped. A nil cast stays nil.
func NormalizeCast(cast *mdl.Cast) *linkstore.CastBuckets {
	if cast == nil {
		return nil
	}
	buckets := &linkstore.CastBuckets{
		Main:    []linkstore.CastEntry{},
		Support: []linkstore.CastEntry{},
		Guest:   []linkstore.CastEntry{},
	}
	for _, group := range cast.Groups {
		if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(group.Name)), "role") {
			continue
		}
		for _, member := range group.Members {
			role := classifyRole(member.RoleType, group.Name)
			entry := linkstore.CastEntry{
				Name:      strings.TrimSpace(member.Name),
				Image:     strings.TrimSpace(member.Image),
				PersonKey: strings.TrimSpace(member.PersonKey),
				Character: strings.TrimSpace(member.Character),
				RoleType:  role,
			}
			switch role {
			case linkstore.RoleMain:
				buckets.Main = append(buckets.Main, entry)
			case linkstore.RoleGuest:
				buckets.Guest = append(buckets.Guest, entry)
			default:
				buckets.Support = append(buckets.Support, entry)
			}
		}
	}
	return buckets
}

// classifyRole prefers the member's own role type and falls back to the
// group name, then to support.
func classifyRole(roleType, groupName string) string {
	for _, candidate := range []string{roleType, groupName} {
		switch lower := strings.ToLower(candidate); {
		case strings.Contains(lower, "main"):
			return linkstore.RoleMain
		case strings.Contains(lower, "guest"):
			return linkstore.RoleGuest
		case strings.Contains(lower, "support"):
			return linkstore.RoleSupport
		}
	}
	return linkstore.RoleSupport
}
