// Package render writes profile statistics into SVG card templates.
package render

import (
	"bytes"
	"fmt"

	"github.com/beevik/etree"
	"github.com/spf13/afero"
)

// Placeholder ids understood by Overwrite.
const (
	IDCommits   = "commit_data"
	IDStars     = "star_data"
	IDRepos     = "repo_data"
	IDFollowers = "follower_data"
	IDLoc       = "loc_data"
	IDLocAdd    = "loc_add"
	IDLocDel    = "loc_del"
	IDAge       = "age_data"
	IDProgress  = "loc_progress"
)

// Card holds the display strings for one template. Values are written verbatim.
type Card struct {
	Commits   string
	Stars     string
	Repos     string
	Followers string
	// Age is optional; templates without an age line leave it empty.
	Age string
	Loc LocCard
}

// LocCard carries the formatted lines-of-code figures.
// Animated also updates the progress element.
type LocCard struct {
	Added    string
	Removed  string
	Net      string
	Animated bool
}

// findByID returns the first element in document order whose id attribute is id.
func findByID(el *etree.Element, id string) *etree.Element {
	if el.SelectAttrValue("id", "") == id {
		return el
	}
	for _, child := range el.ChildElements() {
		if found := findByID(child, id); found != nil {
			return found
		}
	}
	return nil
}

// FindAndReplace sets the text of the element with the given id.
// Nothing happens if no element carries that id.
func FindAndReplace(doc *etree.Document, id, text string) {
	root := doc.Root()
	if root == nil {
		return
	}
	if el := findByID(root, id); el != nil {
		el.SetText(text)
	}
}

// Fill applies card to doc.
func Fill(doc *etree.Document, card Card) {
	FindAndReplace(doc, IDCommits, card.Commits)
	FindAndReplace(doc, IDStars, card.Stars)
	FindAndReplace(doc, IDRepos, card.Repos)
	FindAndReplace(doc, IDFollowers, card.Followers)
	FindAndReplace(doc, IDLoc, card.Loc.Net)
	FindAndReplace(doc, IDLocAdd, card.Loc.Added)
	FindAndReplace(doc, IDLocDel, card.Loc.Removed)
	if card.Age != "" {
		FindAndReplace(doc, IDAge, card.Age)
	}
	if card.Loc.Animated {
		FindAndReplace(doc, IDProgress, card.Loc.Net)
	}
}

// stripDeclaration removes any <?xml ...?> processing instruction.
func stripDeclaration(doc *etree.Document) {
	for _, tok := range append([]etree.Token(nil), doc.Child...) {
		if pi, ok := tok.(*etree.ProcInst); ok && pi.Target == "xml" {
			doc.RemoveChild(pi)
		}
	}
}

// Overwrite fills the template at path with card and writes it back in place,
// UTF-8 encoded and without an XML declaration.
func Overwrite(fs afero.Fs, path string, card Card) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("failed to read template %s: %w", path, err)
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromBytes(data); err != nil {
		return fmt.Errorf("failed to parse template %s: %w", path, err)
	}

	Fill(doc, card)
	stripDeclaration(doc)

	var buf bytes.Buffer
	if _, err := doc.WriteTo(&buf); err != nil {
		return fmt.Errorf("failed to serialize template %s: %w", path, err)
	}
	if err := afero.WriteFile(fs, path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write template %s: %w", path, err)
	}
	return nil
}
