package handlers

import (
	"context"
	"io"
	"net/url"

	"github.com/a-h/templ"

	"github.com/oksasatya/storefront-admin/internal/application"
	"github.com/oksasatya/storefront-admin/internal/domain/entity"
)

// PageData is what the admin views render.
type PageData struct {
	Title   string
	View    application.View
	Search  bool
	Uploads bool
	Stream  bool
}

// Authenticated reports whether the dashboard (rather than the login form)
// should be shown.
func (p PageData) Authenticated() bool {
	return p.View.State == application.StateAuthenticated
}

// Editing reports whether the form is in edit mode.
func (p PageData) Editing() bool { return p.View.EditingID != "" }

// markup writes HTML, escaping every dynamic value with templ. The first
// write error sticks and later writes are skipped.
type markup struct {
	ctx context.Context
	w   io.Writer
	err error
}

func (m *markup) raw(s string) {
	if m.err == nil {
		_, m.err = io.WriteString(m.w, s)
	}
}

func (m *markup) text(s string) { m.raw(templ.EscapeString(s)) }

// url writes an attribute URL. Unsafe schemes are replaced by templ.
func (m *markup) url(s string) { m.text(string(templ.URL(s))) }

func (m *markup) attrIf(ok bool, attr string) {
	if ok {
		m.raw(attr)
	}
}

func (m *markup) child(c templ.Component) {
	if m.err == nil {
		m.err = c.Render(m.ctx, m.w)
	}
}

func view(fn func(m *markup)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		m := &markup{ctx: ctx, w: w}
		fn(m)
		return m.err
	})
}

const styles = `
    body { font-family: system-ui, sans-serif; background: #f3f4f6; margin: 0; color: #111827; }
    main { max-width: 960px; margin: 0 auto; padding: 2rem 1rem; }
    .card { background: #fff; border-radius: .75rem; padding: 1.5rem; margin-top: 2rem; box-shadow: 0 4px 12px rgba(0,0,0,.08); }
    .ok { background: #dcfce7; color: #15803d; padding: .75rem; border-radius: .375rem; }
    .err { background: #fee2e2; color: #b91c1c; padding: .75rem; border-radius: .375rem; }
    label { display: block; font-size: .875rem; margin: .75rem 0 .25rem; }
    input, select, textarea { width: 100%; padding: .5rem; box-sizing: border-box; }
    table { width: 100%; border-collapse: collapse; }
    th, td { text-align: left; padding: .5rem; border-bottom: 1px solid #e5e7eb; }
    td img { width: 48px; height: 48px; object-fit: cover; border-radius: .375rem; }
    .actions form { display: inline; }
`

const searchScript = `<script>
  document.getElementById("search").addEventListener("change", async (e) => {
    const res = await fetch("/api/products/search?q=" + encodeURIComponent(e.target.value));
    const body = await res.json();
    const list = document.getElementById("results");
    list.replaceChildren(...(body.data || []).map((p) => {
      const li = document.createElement("li");
      li.textContent = p.name + " (" + p.category + ") " + p.price;
      return li;
    }));
  });
</script>`

const streamScript = `<script>
  const src = new EventSource("/admin/stream");
  src.addEventListener("products", (e) => { document.getElementById("products").innerHTML = e.data; });
  src.addEventListener("reload", () => location.reload());
</script>`

// Layout is the document shell. Its body is the children component.
func Layout(title string) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		body := templ.GetChildren(ctx)
		ctx = templ.ClearChildren(ctx)
		m := &markup{ctx: ctx, w: w}
		m.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		m.raw(`<meta name="viewport" content="width=device-width, initial-scale=1"><title>`)
		m.text(title)
		m.raw(`</title><style>` + styles + `</style></head><body><main>`)
		m.child(body)
		m.raw(`</main></body></html>`)
		return m.err
	})
}

// LoginView is the email and password form.
func LoginView(v application.View) templ.Component {
	return view(func(m *markup) {
		m.raw(`<section class="card"><h3>Admin Login</h3><form method="post" action="/admin/login">`)
		m.raw(`<label for="email">Email</label><input id="email" name="email" type="email" placeholder="admin@example.com" required>`)
		m.raw(`<label for="password">Password</label><input id="password" name="password" type="password" placeholder="********" required>`)
		if v.Error != "" {
			m.raw(`<p class="err">`)
			m.text(v.Error)
			m.raw(`</p>`)
		}
		if v.Message != "" {
			m.raw(`<p class="ok">`)
			m.text(v.Message)
			m.raw(`</p>`)
		}
		m.raw(`<p><button type="submit">Login</button></p></form></section>`)
	})
}

// Banner shows the outcome of the last action.
func Banner(v application.View) templ.Component {
	return view(func(m *markup) {
		if v.Message != "" {
			m.raw(`<div class="ok" role="status">`)
			m.text(v.Message)
			m.raw(`</div>`)
		}
		if v.Error != "" {
			m.raw(`<div class="err" role="alert">`)
			m.text(v.Error)
			m.raw(`</div>`)
		}
	})
}

func Account(v application.View) templ.Component {
	return view(func(m *markup) {
		m.raw(`<section class="card"><h3>Admin Panel</h3><p>Welcome, `)
		if v.Identity != nil {
			m.text(v.Identity.Email)
		}
		m.raw(`!</p><form method="post" action="/admin/logout"><button type="submit">Logout</button></form></section>`)
	})
}

// ProductForm creates a product, or updates one in edit mode.
func ProductForm(data PageData) templ.Component {
	return view(func(m *markup) {
		d := data.View.Draft
		m.raw(`<section class="card"><h3>`)
		if data.Editing() {
			m.raw(`Edit Product`)
		} else {
			m.raw(`Add New Product`)
		}
		m.raw(`</h3><form method="post" action="/admin/products"`)
		m.attrIf(data.Uploads, ` enctype="multipart/form-data"`)
		m.raw(`>`)

		m.raw(`<label for="name">Product Name</label><input id="name" name="name" type="text" value="`)
		m.text(d.Name)
		m.raw(`" required><label for="category">Category</label><select id="category" name="category" required>`)
		for _, c := range entity.Categories() {
			m.raw(`<option value="`)
			m.text(string(c))
			m.raw(`"`)
			m.attrIf(string(c) == d.Category, ` selected`)
			m.raw(`>`)
			m.text(string(c))
			m.raw(`</option>`)
		}
		m.raw(`</select><label for="price">Price (e.g., ₹150.00)</label><input id="price" name="price" type="text" value="`)
		m.text(d.Price)
		m.raw(`" required><label for="imageUrl">Image URL</label><input id="imageUrl" name="imageUrl" type="url" value="`)
		m.text(d.ImageURL)
		m.raw(`" placeholder="https://example.com/image.jpg">`)
		if data.Uploads {
			m.raw(`<label for="image">Or upload an image</label><input id="image" name="image" type="file" accept="image/*">`)
		}
		m.raw(`<label for="description">Description</label><textarea id="description" name="description" rows="3" required>`)
		m.text(d.Description)
		m.raw(`</textarea><p><button type="submit">`)
		if data.Editing() {
			m.raw(`Update Product`)
		} else {
			m.raw(`Add Product`)
		}
		m.raw(`</button></p></form>`)
		if data.Editing() {
			m.raw(`<form method="post" action="/admin/products/cancel"><button type="submit">Cancel</button></form>`)
		}
		m.raw(`</section>`)
	})
}

// ProductTable renders the product list alone, for streaming updates.
func ProductTable(data PageData) templ.Component {
	return view(func(m *markup) {
		v := data.View
		switch {
		case v.Loading:
			m.raw(`<p>Loading products...</p>`)
			return
		case len(v.Products) == 0:
			m.raw(`<p>No products added yet. Add some above!</p>`)
			return
		}
		m.raw(`<table><thead><tr><th>Image</th><th>Name</th><th>Category</th><th>Price</th><th>Actions</th></tr></thead><tbody>`)
		for _, p := range v.Products {
			base := "/admin/products/" + url.PathEscape(p.ID)
			m.raw(`<tr data-id="`)
			m.text(p.ID)
			m.raw(`"><td><img src="`)
			m.url(p.ImageURL)
			m.raw(`" alt="`)
			m.text(p.Name)
			m.raw(`"></td><td>`)
			m.text(p.Name)
			m.raw(`</td><td>`)
			m.text(string(p.Category))
			m.raw(`</td><td>`)
			m.text(p.Price)
			m.raw(`</td><td class="actions"><form method="post" action="`)
			m.url(base + "/edit")
			m.raw(`"><button type="submit">Edit</button></form><form method="post" action="`)
			m.url(base + "/delete")
			m.raw(`" onsubmit="return confirm('Are you sure you want to delete this product?')"><button type="submit">Delete</button></form></td></tr>`)
		}
		m.raw(`</tbody></table>`)
	})
}

func productsSection(data PageData) templ.Component {
	return view(func(m *markup) {
		m.raw(`<section class="card"><h3>Existing Products</h3>`)
		if data.Search {
			m.raw(`<p><input id="search" type="search" placeholder="Search products" aria-label="Search products"></p><ul id="results"></ul>`)
			m.raw(searchScript)
		}
		m.raw(`<div id="products">`)
		m.child(ProductTable(data))
		m.raw(`</div></section>`)
		if data.Stream {
			m.raw(streamScript)
		}
	})
}

// AdminPage renders the full page: the login form or the dashboard.
func AdminPage(data PageData) templ.Component {
	var body templ.Component
	if data.Authenticated() {
		body = templ.Join(
			templ.Raw(`<h2>Admin Dashboard</h2>`),
			Banner(data.View),
			Account(data.View),
			ProductForm(data),
			productsSection(data),
		)
	} else {
		body = LoginView(data.View)
	}
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		return Layout(data.Title).Render(templ.WithChildren(ctx, body), w)
	})
}
