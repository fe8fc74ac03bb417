package httpapi

import (
	"errors"
	"html/template"
	"net/http"

	"github.com/fairyhunter13/storefront-checkout/internal/checkout"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
)

var checkoutPage = template.Must(template.New("checkout").Parse(`<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Checkout Form</title>
    {{- if .Submitting}}
    <meta http-equiv="refresh" content="1" />
    {{- end}}
  </head>
  <body>
    <main class="container">
      <div class="py-5 text-center">
        <h2>Checkout Form</h2>
        <p class="lead" id="status">{{.Message}}</p>
        {{- if .Submitting}}
        <div class="spinner-border" role="status"><span class="visually-hidden">Loading...</span></div>
        {{- end}}
      </div>
      <form method="post" action="/checkout/{{.SessionID}}">
        <label for="product_id">Product</label>
        <input id="product_id" name="product_id" value="{{.ProductID}}" {{if .Submitting}}disabled{{end}} required />
        <label for="quantity">Quantity</label>
        <input id="quantity" type="number" name="quantity" value="{{.Quantity}}" min="1" {{if .Submitting}}disabled{{end}} required />
        <hr />
        <button type="submit" {{if .Submitting}}disabled{{end}}>{{if .Submitting}}Processing...{{else}}Buy{{end}}</button>
      </form>
    </main>
  </body>
</html>
`))

type pageData struct {
	SessionID  string
	ProductID  string
	Quantity   string
	Message    string
	Submitting bool
}

// indexHandler mounts a fresh form and sends the browser to it.
func (a *App) indexHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	id, _ := a.Sessions.Create()
	http.Redirect(w, r, "/checkout/"+id, http.StatusSeeOther)
}

func (a *App) viewHandler(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := a.lookup(w, r)
	if !ok {
		return
	}
	s := wf.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	err := checkoutPage.Execute(w, pageData{
		SessionID:  id,
		ProductID:  s.ProductID,
		Quantity:   s.Quantity,
		Message:    s.Status.Message(),
		Submitting: s.Submitting(),
	})
	if err != nil {
		obs.Logger.Error("view_render_failed", "session_id", id, "error", err)
	}
}

// formPostHandler applies a plain HTML form post: both field edits, then the
// submit. Validation failures leave the status line untouched, the same as a
// browser refusing to submit an invalid form.
func (a *App) formPostHandler(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if err := r.ParseForm(); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_form", err.Error())
		return
	}
	err := wf.SubmitForm(r.PostForm.Get("product_id"), r.PostForm.Get("quantity"))
	switch {
	case err == nil:
		obs.Logger.Info("order_submit_started",
			"session_id", id,
			"request_id", RequestIDFromContext(r.Context()),
		)
	case errors.Is(err, checkout.ErrClosed):
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	default:
		obs.Logger.Debug("form_post_rejected", "session_id", id, "error", err)
	}
	http.Redirect(w, r, "/checkout/"+id, http.StatusSeeOther)
}
