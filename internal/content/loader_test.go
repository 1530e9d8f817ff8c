package content

import (
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/terra-clan/humanarch/internal/assessment"
	"github.com/terra-clan/humanarch/internal/models"
)

func minimalFS() fstest.MapFS {
	return fstest.MapFS{
		TranslationsFile: {Data: []byte(`
translations:
  nav.home: {en: "Home", ru: "Главная"}
`)},
		ProductsFile: {Data: []byte(`
products:
  - id: book
    category: book
    price: 45
    name: {en: "Book", ru: "Книга"}
    image: /book.jpg
`)},
		QuestionsFile: {Data: []byte(`
questions:
  - id: 1
    category: Foundation
    text: {en: "Tired?", ru: "Устали?"}
`)},
		DiagnosisFile: {Data: []byte(`
prescriptions:
  - category: Foundation
    prescription: {en: "Rest", ru: "Отдых"}
    action: {en: "Sleep", ru: "Спать"}
    reference: "Volume I"
`)},
	}
}

func TestLoadDefaults(t *testing.T) {
	l := NewLoader()
	require.NoError(t, l.LoadDefaults())

	assert.Len(t, l.Questions(), 6)
	assert.Len(t, l.Products(), 5)
	assert.NotEmpty(t, l.Posts())
	assert.NotEmpty(t, l.SeedPosts())
	assert.False(t, l.LoadedAt().IsZero())

	p, err := l.Product("architecture-of-the-human")
	require.NoError(t, err)
	assert.Equal(t, 45.0, p.Price)

	for _, q := range l.Questions() {
		_, ok := l.Prescription(q.Category)
		assert.True(t, ok, "missing prescription for %s", q.Category)
	}

	// newest first
	posts := l.Posts()
	for i := 1; i < len(posts); i++ {
		assert.GreaterOrEqual(t, posts[i-1].Date, posts[i].Date)
	}
}

func TestLoadDefaults_ServesAssessment(t *testing.T) {
	l := NewLoader()
	require.NoError(t, l.LoadDefaults())

	answers := make(map[int]int)
	for _, q := range l.Questions() {
		answers[q.ID] = 5
	}
	report := assessment.Score(l.Questions(), answers)
	diagnosis := assessment.Diagnose(&report, l)
	assert.Len(t, diagnosis, len(report.Critical))
	assert.NotEmpty(t, diagnosis)
}

func TestLoadFromFS_Minimal(t *testing.T) {
	l := NewLoader()
	require.NoError(t, l.LoadFromFS(minimalFS()))

	assert.Empty(t, l.Posts())
	assert.Empty(t, l.SeedPosts())
	assert.Equal(t, "Главная", l.T("nav.home", models.LangRU))
}

func TestLoadFromFS_Rejects(t *testing.T) {
	tests := []struct {
		name string
		file string
		data string
	}{
		{
			name: "missing russian translation",
			file: TranslationsFile,
			data: "translations:\n  nav.home: {en: \"Home\"}\n",
		},
		{
			name: "zero price",
			file: ProductsFile,
			data: "products:\n  - {id: a, category: book, price: 0, name: {en: A, ru: A}, image: /a.jpg}\n",
		},
		{
			name: "duplicate product",
			file: ProductsFile,
			data: "products:\n  - {id: a, category: book, price: 1, name: {en: A, ru: A}, image: /a.jpg}\n  - {id: a, category: book, price: 2, name: {en: A, ru: A}, image: /a.jpg}\n",
		},
		{
			name: "unknown category",
			file: QuestionsFile,
			data: "questions:\n  - {id: 1, category: Roof, text: {en: Q, ru: Q}}\n",
		},
		{
			name: "duplicate question id",
			file: QuestionsFile,
			data: "questions:\n  - {id: 1, category: Foundation, text: {en: Q, ru: Q}}\n  - {id: 1, category: Foundation, text: {en: R, ru: R}}\n",
		},
		{
			name: "category without prescription",
			file: QuestionsFile,
			data: "questions:\n  - {id: 1, category: Exterior, text: {en: Q, ru: Q}}\n",
		},
		{
			name: "bad post date",
			file: PostsFile,
			data: "posts:\n  - {slug: a, date: yesterday, title: {en: T, ru: T}, excerpt: {en: E, ru: E}, body: b}\n",
		},
		{
			name: "malformed yaml",
			file: ProductsFile,
			data: "products: [",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := minimalFS()
			fsys[tt.file] = &fstest.MapFile{Data: []byte(tt.data)}

			l := NewLoader()
			err := l.LoadFromFS(fsys)
			require.Error(t, err)
			assert.True(t, l.LoadedAt().IsZero(), "tables must not be swapped on failure")
		})
	}
}

func TestLoadFromFS_MissingTranslationNamesField(t *testing.T) {
	fsys := minimalFS()
	fsys[TranslationsFile] = &fstest.MapFile{Data: []byte("translations:\n  hero.cta: {en: \"Go\"}\n")}

	err := NewLoader().LoadFromFS(fsys)
	require.ErrorIs(t, err, ErrInvalidContent)
	assert.Contains(t, err.Error(), "hero.cta")
	assert.Contains(t, err.Error(), "RU")
}

func TestLoadFromFS_MissingRequiredFile(t *testing.T) {
	fsys := minimalFS()
	delete(fsys, DiagnosisFile)

	err := NewLoader().LoadFromFS(fsys)
	require.Error(t, err)
	assert.Contains(t, err.Error(), DiagnosisFile)
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	for name, f := range minimalFS() {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), f.Data, 0o644))
	}

	l := NewLoader()
	require.NoError(t, l.Load(dir))
	assert.Len(t, l.Products(), 1)

	assert.Error(t, NewLoader().LoadFromDir(filepath.Join(dir, "missing")))
}

func TestLookups(t *testing.T) {
	l := NewLoader()
	require.NoError(t, l.LoadDefaults())

	_, err := l.Product("nope")
	assert.ErrorIs(t, err, ErrProductNotFound)

	_, err = l.Post("nope")
	assert.ErrorIs(t, err, ErrPostNotFound)

	post, err := l.Post("load-bearing-habits")
	require.NoError(t, err)
	assert.Equal(t, "Load-Bearing Habits", post.Title.Get(models.LangEN))

	books := l.ProductsByCategory("book")
	require.Len(t, books, 1)
	assert.Equal(t, "architecture-of-the-human", books[0].ID)

	assert.Equal(t, "missing.key", l.T("missing.key", models.LangEN))
	assert.Equal(t, "Фундамент", l.Translations(models.LangRU)["pillar.Foundation"])
}

func TestNegotiateLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   models.Language
	}{
		{"", models.LangEN},
		{"ru-RU,ru;q=0.9,en;q=0.8", models.LangRU},
		{"en-US,en;q=0.9", models.LangEN},
		{"de-DE", models.LangEN},
		{"fr;q=0.9,ru;q=0.5", models.LangRU},
		{";;;garbage", models.LangEN},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, NegotiateLanguage(tt.header))
		})
	}
}
