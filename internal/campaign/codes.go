package campaign

import (
	"fmt"
	"strings"

	"github.com/campaignops/resource-factory/internal/models"
)

// rootCodePrefix anchors generated boundary codes under a stable namespace
// so they never collide with codes minted by other tooling.
const rootCodePrefix = "ADMIN"

const nameSeparator = "\x1f"

// codeAssigner mints boundary codes for sheet rows. A node that already
// exists in the tenant tree under the same parent keeps its code; new
// siblings get ordinal-suffixed codes that cannot collide.
type codeAssigner struct {
	byParentAndName map[string]string
	siblings        map[string]int
	taken           map[string]bool
}

func newCodeAssigner(existing []models.BoundaryRelationship) *codeAssigner {
	a := &codeAssigner{
		byParentAndName: make(map[string]string),
		siblings:        make(map[string]int),
		taken:           make(map[string]bool),
	}
	for _, rel := range existing {
		name := rel.Name
		if name == "" {
			name = rel.Code
		}
		a.byParentAndName[nodeKey(rel.ParentCode, name)] = rel.Code
		a.siblings[rel.ParentCode]++
		a.taken[rel.Code] = true
	}
	return a
}

// Assign returns the code for a boundary named name under parentCode,
// minting a new one when the node does not exist yet.
func (a *codeAssigner) Assign(parentCode, name string) (string, bool) {
	key := nodeKey(parentCode, name)
	if code, ok := a.byParentAndName[key]; ok {
		return code, false
	}

	a.siblings[parentCode]++
	ordinal := a.siblings[parentCode]

	var code string
	if parentCode == "" {
		code = fmt.Sprintf("%s_%s", rootCodePrefix, normalizeCode(name))
	} else {
		code = fmt.Sprintf("%s_%02d_%s", parentCode, ordinal, normalizeCode(name))
	}
	// Distinct names can normalize to the same segment. The minted code
	// must stay unique across the tenant tree, so suffix until it is.
	base := code
	for n := 2; a.taken[code]; n++ {
		code = fmt.Sprintf("%s_%02d", base, n)
	}
	a.taken[code] = true
	a.byParentAndName[key] = code
	return code, true
}

func nodeKey(parentCode, name string) string {
	return parentCode + nameSeparator + strings.ToUpper(strings.TrimSpace(name))
}

// normalizeCode flattens a display name into a code segment: uppercased,
// with every run of non-alphanumeric characters collapsed to one
// underscore.
func normalizeCode(name string) string {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.ToUpper(strings.TrimSpace(name)) {
		switch {
		case r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		default:
			if !lastUnderscore && b.Len() > 0 {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "_")
}
