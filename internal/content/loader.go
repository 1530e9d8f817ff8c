// Package content loads the site's static lookup tables (translations,
// catalog, quiz questions, diagnoses, journal and guild seed posts) from
// YAML and validates them before they are served.
package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/terra-clan/humanarch/internal/models"
)

//go:embed defaults/*.yaml
var defaultFiles embed.FS

// Content file names
const (
	TranslationsFile = "translations.yaml"
	ProductsFile     = "products.yaml"
	QuestionsFile    = "questions.yaml"
	DiagnosisFile    = "diagnosis.yaml"
	PostsFile        = "posts.yaml"
	CommunityFile    = "community.yaml"
)

// Common errors
var (
	ErrProductNotFound = errors.New("product not found")
	ErrPostNotFound    = errors.New("post not found")
)

// Loader holds the loaded content tables. All accessors are safe for
// concurrent use; a reload swaps every table at once.
type Loader struct {
	mu            sync.RWMutex
	translations  map[string]models.LocalizedText
	products      []models.Product
	productIndex  map[string]int
	questions     []models.Question
	prescriptions map[models.Category]models.Prescription
	posts         []models.Post
	postIndex     map[string]int
	seedPosts     []models.CommunityPost
	loadedAt      time.Time
}

// NewLoader creates an empty loader
func NewLoader() *Loader {
	return &Loader{
		translations:  make(map[string]models.LocalizedText),
		productIndex:  make(map[string]int),
		prescriptions: make(map[models.Category]models.Prescription),
		postIndex:     make(map[string]int),
	}
}

// Load reads content from dir, or from the embedded defaults when dir is empty
func (l *Loader) Load(dir string) error {
	if dir == "" {
		return l.LoadDefaults()
	}
	return l.LoadFromDir(dir)
}

// LoadDefaults loads the content tables compiled into the binary
func (l *Loader) LoadDefaults() error {
	sub, err := fs.Sub(defaultFiles, "defaults")
	if err != nil {
		return fmt.Errorf("failed to open embedded content: %w", err)
	}
	return l.LoadFromFS(sub)
}

// LoadFromDir loads all content files from a directory
func (l *Loader) LoadFromDir(dir string) error {
	slog.Info("loading content from directory", "dir", dir)
	info, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("failed to stat content dir: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("content path %s is not a directory", dir)
	}
	return l.LoadFromFS(os.DirFS(dir))
}

// LoadFromFS parses and validates every content file in fsys. Translations,
// products, questions and diagnosis are required; posts and community are
// optional. Nothing is replaced unless the whole set is valid.
func (l *Loader) LoadFromFS(fsys fs.FS) error {
	var tf translationsFile
	if err := readYAML(fsys, TranslationsFile, &tf, true); err != nil {
		return err
	}
	var pf productsFile
	if err := readYAML(fsys, ProductsFile, &pf, true); err != nil {
		return err
	}
	var qf questionsFile
	if err := readYAML(fsys, QuestionsFile, &qf, true); err != nil {
		return err
	}
	var df diagnosisFile
	if err := readYAML(fsys, DiagnosisFile, &df, true); err != nil {
		return err
	}
	var jf postsFile
	if err := readYAML(fsys, PostsFile, &jf, false); err != nil {
		return err
	}
	var cf communityFile
	if err := readYAML(fsys, CommunityFile, &cf, false); err != nil {
		return err
	}

	set := &tables{
		translations:  tf.Translations,
		products:      pf.Products,
		questions:     qf.Questions,
		prescriptions: df.Prescriptions,
		posts:         jf.Posts,
		seedPosts:     cf.seedPosts(),
	}
	if err := set.validate(); err != nil {
		return err
	}

	l.swap(set)

	slog.Info("content loaded",
		"translations", len(set.translations),
		"products", len(set.products),
		"questions", len(set.questions),
		"prescriptions", len(set.prescriptions),
		"posts", len(set.posts),
		"community_posts", len(set.seedPosts),
	)
	return nil
}

func (l *Loader) swap(set *tables) {
	productIndex := make(map[string]int, len(set.products))
	for i, p := range set.products {
		productIndex[p.ID] = i
	}

	prescriptions := make(map[models.Category]models.Prescription, len(set.prescriptions))
	for _, p := range set.prescriptions {
		prescriptions[p.Category] = p
	}

	posts := append([]models.Post(nil), set.posts...)
	// newest first
	sort.SliceStable(posts, func(i, j int) bool { return posts[i].Date > posts[j].Date })
	postIndex := make(map[string]int, len(posts))
	for i, p := range posts {
		postIndex[p.Slug] = i
	}

	translations := make(map[string]models.LocalizedText, len(set.translations))
	for k, v := range set.translations {
		translations[k] = v
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.translations = translations
	l.products = set.products
	l.productIndex = productIndex
	l.questions = set.questions
	l.prescriptions = prescriptions
	l.posts = posts
	l.postIndex = postIndex
	l.seedPosts = set.seedPosts
	l.loadedAt = time.Now()
}

// LoadedAt returns when the current tables were loaded
func (l *Loader) LoadedAt() time.Time {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.loadedAt
}

// Products returns the catalog in file order
func (l *Loader) Products() []models.Product {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Product(nil), l.products...)
}

// ProductsByCategory returns the catalog entries of one product category
func (l *Loader) ProductsByCategory(category string) []models.Product {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var result []models.Product
	for _, p := range l.products {
		if p.Category == category {
			result = append(result, p)
		}
	}
	return result
}

// Product returns a catalog entry by id
func (l *Loader) Product(id string) (models.Product, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.productIndex[id]
	if !ok {
		return models.Product{}, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return l.products[i], nil
}

// Questions returns the assessment questions in order
func (l *Loader) Questions() []models.Question {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Question(nil), l.questions...)
}

// Prescription returns the diagnosis triple of a category
func (l *Loader) Prescription(cat models.Category) (models.Prescription, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.prescriptions[cat]
	return p, ok
}

// Posts returns the journal, newest first
func (l *Loader) Posts() []models.Post {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Post(nil), l.posts...)
}

// Post returns a journal entry by slug
func (l *Loader) Post(slug string) (models.Post, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	i, ok := l.postIndex[slug]
	if !ok {
		return models.Post{}, fmt.Errorf("%w: %s", ErrPostNotFound, slug)
	}
	return l.posts[i], nil
}

// SeedPosts returns the community posts the guild board starts with
func (l *Loader) SeedPosts() []models.CommunityPost {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.CommunityPost(nil), l.seedPosts...)
}

func readYAML(fsys fs.FS, name string, out interface{}, required bool) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to parse %s: %w", name, err)
	}
	return nil
}

// --- YAML file structs ---

type translationsFile struct {
	Translations map[string]models.LocalizedText `yaml:"translations"`
}

type productsFile struct {
	Products []models.Product `yaml:"products"`
}

type questionsFile struct {
	Questions []models.Question `yaml:"questions"`
}

type diagnosisFile struct {
	Prescriptions []models.Prescription `yaml:"prescriptions"`
}

type postsFile struct {
	Posts []models.Post `yaml:"posts"`
}

type communityFile struct {
	Posts []struct {
		Author    string    `yaml:"author"`
		Body      string    `yaml:"body"`
		Likes     int       `yaml:"likes"`
		CreatedAt time.Time `yaml:"created_at"`
	} `yaml:"posts"`
}

func (f communityFile) seedPosts() []models.CommunityPost {
	out := make([]models.CommunityPost, 0, len(f.Posts))
	for i, p := range f.Posts {
		out = append(out, models.CommunityPost{
			ID:        fmt.Sprintf("seed-%d", i+1),
			Author:    p.Author,
			Body:      p.Body,
			Likes:     p.Likes,
			CreatedAt: p.CreatedAt,
		})
	}
	return out
}
