package mdl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/antonholmquist/jason"
)

// Proxy role group names, in the order they are emitted.
const (
	GroupMain    = "Main Role"
	GroupSupport = "Support Role"
	GroupGuest   = "Guest Role"
)

var groupOrder = map[string]int{GroupMain: 0, GroupSupport: 1, GroupGuest: 2}

func parseSearch(obj *jason.Object) ([]Candidate, error) {
	results, err := obj.GetObject("results")
	if err != nil {
		return nil, fmt.Errorf("results: %w", err)
	}
	// The proxy omits the array entirely when nothing matched.
	if _, err := results.GetValue("dramas"); err != nil {
		return nil, nil
	}
	dramas, err := results.GetObjectArray("dramas")
	if err != nil {
		return nil, fmt.Errorf("results.dramas: %w", err)
	}
	candidates := make([]Candidate, 0, len(dramas))
	for _, d := range dramas {
		slug, err := d.GetString("slug")
		if err != nil || strings.TrimSpace(slug) == "" {
			continue
		}
		title, _ := d.GetString("title")
		candidates = append(candidates, Candidate{
			Key:   strings.TrimSpace(slug),
			Title: strings.TrimSpace(title),
			Year:  yearValue(d),
		})
	}
	return candidates, nil
}

func parseDetails(obj *jason.Object) (*Details, error) {
	data, err := obj.GetObject("data")
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	title, _ := data.GetString("title")
	details := &Details{Title: strings.TrimSpace(title)}
	if v, err := data.GetValue("rating"); err == nil {
		details.Rating = scalarString(v)
	}
	details.Ranked, _ = data.GetString("details", "ranked")
	details.Popularity, _ = data.GetString("details", "popularity")
	details.Genres = stringList(data, "others", "genres")
	details.Tags = stringList(data, "others", "tags")
	return details, nil
}

func parseCast(obj *jason.Object) (*Cast, error) {
	casts, err := obj.GetObject("data", "casts")
	if err != nil {
		return nil, fmt.Errorf("data.casts: %w", err)
	}
	groups := casts.Map()
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		oi, iKnown := groupOrder[names[i]]
		oj, jKnown := groupOrder[names[j]]
		switch {
		case iKnown && jKnown:
			return oi < oj
		case iKnown != jKnown:
			return iKnown
		default:
			return names[i] < names[j]
		}
	})

	cast := &Cast{}
	for _, name := range names {
		entries, err := casts.GetObjectArray(name)
		if err != nil {
			continue
		}
		group := CastGroup{Name: name}
		for _, entry := range entries {
			member := CastMember{}
			member.Name, _ = entry.GetString("name")
			if strings.TrimSpace(member.Name) == "" {
				continue
			}
			member.Image, _ = entry.GetString("profile_image")
			if slug, err := entry.GetString("slug"); err == nil {
				member.PersonKey = PersonKeyFromSlug(slug)
			}
			member.Character, _ = entry.GetString("role", "name")
			member.RoleType, _ = entry.GetString("role", "type")
			group.Members = append(group.Members, member)
		}
		cast.Groups = append(cast.Groups, group)
	}
	return cast, nil
}

// PersonKeyFromSlug strips the "people/" prefix the proxy puts on cast slugs.
func PersonKeyFromSlug(slug string) string {
	slug = strings.Trim(strings.TrimSpace(slug), "/")
	return strings.TrimPrefix(slug, "people/")
}

func yearValue(obj *jason.Object) int {
	v, err := obj.GetValue("year")
	if err != nil {
		return 0
	}
	raw := scalarString(v)
	year, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0
	}
	return year
}

// scalarString renders a string or number value as text. Other kinds yield "".
func scalarString(v *jason.Value) string {
	if s, err := v.String(); err == nil {
		return strings.TrimSpace(s)
	}
	if n, err := v.Number(); err == nil {
		return n.String()
	}
	return ""
}

func stringList(obj *jason.Object, keys ...string) []string {
	values, err := obj.GetStringArray(keys...)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
