package content

import (
	"strings"
	"testing"

	"github.com/Epistemic-Technology/academic-reader/internal/cursor"
	"github.com/Epistemic-Technology/academic-reader/models"
)

func doc(translated []string, original []string) *models.Document {
	d := &models.Document{ID: "doc"}
	if translated != nil {
		d.Translated = &models.SectionCollection{}
		for _, t := range translated {
			d.Translated.Pages = append(d.Translated.Pages, models.PageContent{Content: t})
		}
	}
	if original != nil {
		d.Original = &models.SectionCollection{}
		for _, t := range original {
			d.Original.Pages = append(d.Original.Pages, models.PageContent{Content: t})
		}
	}
	return d
}

func TestDeriveWindow(t *testing.T) {
	three := doc([]string{"t1", "t2", "t3"}, []string{"o1", "o2"})

	tests := []struct {
		name string
		page int
		mode models.LanguageMode
		want models.ContentWindow
	}{
		{"first page clamps previous", 1, models.ModeTranslated,
			models.ContentWindow{Page: 1, Previous: "t1", Current: "t1", Next: "t2"}},
		{"middle", 2, models.ModeTranslated,
			models.ContentWindow{Page: 2, Previous: "t1", Current: "t2", Next: "t3"}},
		{"last page clamps next", 3, models.ModeTranslated,
			models.ContentWindow{Page: 3, Previous: "t2", Current: "t3", Next: "t3"}},
		{"out of range page clamps", 9, models.ModeTranslated,
			models.ContentWindow{Page: 3, Previous: "t2", Current: "t3", Next: "t3"}},
		{"missing original page uses placeholder", 3, models.ModeOriginal,
			models.ContentWindow{Page: 3, Mode: models.ModeOriginal, Previous: "o2", Current: PlaceholderOriginal, Next: PlaceholderOriginal}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DeriveWindow(three, tt.page, tt.mode); got != tt.want {
				t.Errorf("DeriveWindow() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestDeriveWindowNoTranslation(t *testing.T) {
	d := doc(nil, []string{"o1"})
	w := DeriveWindow(d, 1, models.ModeTranslated)
	if w.Current != PlaceholderTranslated || w.Previous != PlaceholderTranslated {
		t.Errorf("DeriveWindow() = %+v, want translated placeholders", w)
	}
}

func TestDeriveWindowOnlyEmptyPagesArePlaceholders(t *testing.T) {
	d := doc([]string{"t1", "", "  \n"}, nil)
	if w := DeriveWindow(d, 2, models.ModeTranslated); w.Current != PlaceholderTranslated {
		t.Errorf("empty page Current = %q, want placeholder", w.Current)
	}
	if w := DeriveWindow(d, 3, models.ModeTranslated); w.Current != "  \n" {
		t.Errorf("blank page Current = %q, want content kept", w.Current)
	}
}

func TestDeriveWindowNilDocument(t *testing.T) {
	w := DeriveWindow(nil, 4, models.ModeTranslated)
	if w.Current != "" || w.Page != 4 {
		t.Errorf("DeriveWindow(nil) = %+v", w)
	}
}

func TestAggregatorPushesOnEveryTrigger(t *testing.T) {
	c := cursor.New(3)
	a := NewAggregator(c, models.ModeTranslated)
	defer a.Close()

	var pushed []models.ContentWindow
	a.Subscribe(func(w models.ContentWindow) { pushed = append(pushed, w) })
	if len(pushed) != 1 {
		t.Fatalf("Subscribe should deliver the current window, got %d pushes", len(pushed))
	}

	a.SetDocument(doc([]string{"t1", "t2", "t3"}, []string{"o1", "o2", "o3"}))
	if last := pushed[len(pushed)-1]; last.Current != "t1" {
		t.Fatalf("after SetDocument current = %q", last.Current)
	}

	c.SetPage(2)
	if last := pushed[len(pushed)-1]; last.Current != "t2" || last.Page != 2 {
		t.Fatalf("after SetPage current = %+v", last)
	}

	if a.ToggleMode() != models.ModeOriginal {
		t.Fatal("ToggleMode should switch to original")
	}
	if last := pushed[len(pushed)-1]; last.Current != "o2" {
		t.Fatalf("after toggle current = %q", last.Current)
	}

	before := len(pushed)
	c.SetPage(2)
	a.SetMode(models.ModeOriginal)
	if len(pushed) != before {
		t.Errorf("no-op triggers pushed %d extra windows", len(pushed)-before)
	}
}

func TestAggregatorCloseStopsCursorUpdates(t *testing.T) {
	c := cursor.New(3)
	a := NewAggregator(c, models.ModeTranslated)
	a.SetDocument(doc([]string{"t1", "t2", "t3"}, nil))
	a.Close()

	c.SetPage(3)
	if a.Window().Page != 1 {
		t.Errorf("closed aggregator followed the cursor to page %d", a.Window().Page)
	}
}

func TestNearby(t *testing.T) {
	out := Nearby(models.ContentWindow{Page: 2, Previous: "a", Current: "b", Next: "c"})
	for _, want := range []string{"Page 2 (translated)", "[previous]\na", "[current]\nb", "[next]\nc"} {
		if !strings.Contains(out, want) {
			t.Errorf("Nearby() missing %q in %q", want, out)
		}
	}
}
