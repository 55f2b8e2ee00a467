// Package catalog holds the product definitions a batch is rendered from.
package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/menta2k/product-compositor/pkg/layout"
)

// Side selects which device photo a product is shown against.
type Side string

const (
	SideFront Side = "front"
	SideBack  Side = "back"
)

// Product is one catalog entry.
type Product struct {
	ID          string `yaml:"id" json:"id"`
	Title       string `yaml:"title" json:"title"`
	Description string `yaml:"description,omitempty" json:"description,omitempty"`
	Category    string `yaml:"category,omitempty" json:"category,omitempty"`
	Thumbnail   string `yaml:"thumbnail,omitempty" json:"thumbnail,omitempty"`

	// NeedsPartImage marks accessory products, which are rendered from an
	// uploaded cutout or DefaultPartImage instead of the device photo.
	NeedsPartImage   bool   `yaml:"needs_part_image" json:"needs_part_image"`
	DefaultPartImage string `yaml:"default_part_image,omitempty" json:"default_part_image,omitempty"`
	ModelSide        Side   `yaml:"model_side,omitempty" json:"model_side,omitempty"`

	Overlay     *layout.Overlay `yaml:"overlay,omitempty" json:"overlay,omitempty"`
	Layout      *layout.Layout  `yaml:"layout,omitempty" json:"layout,omitempty"`
	Implemented bool            `yaml:"implemented" json:"implemented"`
}

// Side returns the device side, front unless configured otherwise.
func (p Product) Side() Side {
	if p.ModelSide == SideBack {
		return SideBack
	}
	return SideFront
}

// Spec returns the layout spec of the product. Products without a layout get
// a default side-by-side layout.
func (p Product) Spec() layout.Spec {
	l := layout.SideBySideLayout(layout.SideBySide{})
	if p.Layout != nil {
		l = *p.Layout
	}
	return layout.Spec{
		Accessory: p.NeedsPartImage,
		Overlay:   p.Overlay,
		Layout:    l,
	}
}

// Validate checks a single product.
func (p Product) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("product id is required")
	}
	switch p.ModelSide {
	case "", SideFront, SideBack:
	default:
		return fmt.Errorf("product %s: invalid model side %q", p.ID, p.ModelSide)
	}
	if p.DefaultPartImage != "" && !p.NeedsPartImage {
		return fmt.Errorf("product %s: default part image set but no part image needed", p.ID)
	}
	if err := p.Spec().Validate(); err != nil {
		return fmt.Errorf("product %s: %w", p.ID, err)
	}
	return nil
}

// Catalog is an ordered, immutable set of products.
type Catalog struct {
	products []Product
	byID     map[string]int
}

type file struct {
	Products []Product `yaml:"products"`
}

// New builds a catalog, rejecting invalid products and duplicate ids.
func New(products ...Product) (*Catalog, error) {
	c := &Catalog{
		products: make([]Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("duplicate product id %q", p.ID)
		}
		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

// Parse reads a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	return New(f.Products...)
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return Parse(data)
}

// Get returns the product with the given id.
func (c *Catalog) Get(id string) (Product, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Product{}, false
	}
	return c.products[i], true
}

// Products returns all products in catalog order.
func (c *Catalog) Products() []Product {
	out := make([]Product, len(c.products))
	copy(out, c.products)
	return out
}

// Len returns the number of products.
func (c *Catalog) Len() int {
	return len(c.products)
}

// Implemented returns the products whose rendering is finished.
func (c *Catalog) Implemented() []Product {
	var out []Product
	for _, p := range c.products {
		if p.Implemented {
			out = append(out, p)
		}
	}
	return out
}
