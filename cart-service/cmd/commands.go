package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"text/tabwriter"

	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/client"
	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/domain"
	"github.com/gonzalofreyna/melocoton-move/cart-service/internal/service"
	"github.com/gonzalofreyna/melocoton-move/pkg/money"
	"github.com/gonzalofreyna/melocoton-move/pkg/pricing"
	"github.com/gonzalofreyna/melocoton-move/product-service/pkg/catalog"
)

const commandHelp = `commands:
  list                 print the cart
  add <slug>           add one unit of a catalog product
  inc <slug>           add one more unit
  dec <slug>           remove one unit
  set <slug> <qty>     set the quantity (0 removes the item)
  rm <slug|name>       remove an item or a stale entry
  clear                empty the cart
  show                 cart summary with the coupon preview
  quote                server-side price of the cart
  checkout             start a payment session and print its URL
  visit <url>          handle a storefront navigation
`

var errUsage = errors.New("invalid usage")

type checkoutAPI interface {
	CreateSession(ctx context.Context, req domain.CheckoutRequest) (domain.CheckoutResponse, error)
	Quote(ctx context.Context, req domain.CheckoutRequest) (client.Quote, error)
	Session(ctx context.Context, id string) (client.SessionSummary, error)
}

type app struct {
	store    *service.Store
	preview  *service.CouponPreview
	catalog  catalog.Source
	checkout checkoutAPI
	coupon   string
	out      io.Writer
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errUsage
	}
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "list", "ls":
		a.list()
		return nil
	case "add":
		if len(rest) != 1 {
			return errUsage
		}
		return a.add(ctx, rest[0])
	case "inc", "dec":
		if len(rest) != 1 {
			return errUsage
		}
		if _, ok := a.store.Item(rest[0]); !ok {
			return fmt.Errorf("%s is not in the cart", rest[0])
		}
		if cmd == "inc" {
			a.store.Increment(ctx, rest[0])
		} else {
			a.store.Decrement(ctx, rest[0])
		}
		a.list()
		return nil
	case "set":
		if len(rest) != 2 {
			return errUsage
		}
		if _, ok := a.store.Item(rest[0]); !ok {
			return fmt.Errorf("%s is not in the cart", rest[0])
		}
		a.store.SetQuantity(ctx, rest[0], pricing.ParseQuantity(rest[1]))
		a.list()
		return nil
	case "rm":
		if len(rest) != 1 {
			return errUsage
		}
		if !a.store.Remove(ctx, rest[0]) && !a.store.RemoveStale(ctx, rest[0]) {
			return fmt.Errorf("%s is not in the cart", rest[0])
		}
		a.list()
		return nil
	case "clear":
		a.store.Clear(ctx)
		fmt.Fprintln(a.out, "Cart cleared")
		return nil
	case "show":
		a.show()
		return nil
	case "quote":
		return a.quote(ctx)
	case "checkout":
		return a.startCheckout(ctx)
	case "visit":
		if len(rest) != 1 {
			return errUsage
		}
		return a.visit(ctx, rest[0])
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}
}

func (a *app) add(ctx context.Context, slug string) error {
	cat, err := a.catalog.Fetch(ctx)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	rec, ok := cat.Lookup(slug)
	if !ok {
		return fmt.Errorf("product %s not found", slug)
	}

	added := a.store.Add(ctx, domain.LineItem{
		Slug:         rec.Slug,
		Name:         rec.Name,
		Image:        rec.Image,
		Price:        rec.UnitPrice(),
		Quantity:     1,
		FreeShipping: rec.FreeShipping,
		MaxStock:     rec.StockLimit(),
		ShippingType: rec.Shipping(),
	})
	if !added {
		fmt.Fprintf(a.out, "%s is out of stock or already at its limit\n", rec.Name)
	}
	a.list()
	return nil
}

func (a *app) list() {
	items := a.store.Items()
	stale := a.store.StaleItems()
	if len(items) == 0 && len(stale) == 0 {
		fmt.Fprintln(a.out, "Your cart is empty")
		return
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tNAME\tQTY\tPRICE\tTOTAL")
	for _, it := range items {
		qty := fmt.Sprint(it.Quantity)
		if it.MaxStock != nil && it.Quantity >= *it.MaxStock {
			qty += " (max)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", it.Slug, it.Name, qty, money.Exact(it.Price), money.Exact(it.Total()))
	}
	_ = tw.Flush()

	for _, s := range stale {
		fmt.Fprintf(a.out, "! %q needs to be removed and added again before checkout\n", s.Name())
	}
}

func (a *app) show() {
	a.list()
	sum := a.store.Summary()
	if sum.Empty() {
		return
	}

	fmt.Fprintf(a.out, "\nItems:     %d\n", sum.Count)
	fmt.Fprintf(a.out, "Subtotal:  %s\n", money.Exact(sum.Subtotal))
	if sum.Shipping.Label != "" {
		fmt.Fprintf(a.out, "Shipping:  %s (%s)\n", money.Exact(sum.Shipping.ChargeableShipping()), sum.Shipping.Label)
	}

	if a.coupon != "" {
		switch a.preview.Apply(a.coupon) {
		case service.CouponApplied:
			fmt.Fprintf(a.out, "Coupon:    %s -%s%% (-%s)\n", a.preview.AppliedCode(), a.preview.Percent(), money.Exact(a.preview.Discount()))
		case service.CouponInvalid:
			fmt.Fprintf(a.out, "Coupon:    %s is not valid\n", pricing.NormalizeCode(a.coupon))
		}
	}
	fmt.Fprintf(a.out, "Total:     %s\n", money.Exact(a.preview.DisplayedTotal()))
}

func (a *app) quote(ctx context.Context) error {
	req, err := a.store.CheckoutRequest(a.coupon)
	if err != nil {
		return a.explain(err)
	}
	q, err := a.checkout.Quote(ctx, req)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(a.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SLUG\tQTY\tPRICE\tTOTAL")
	for _, l := range q.Lines {
		qty := fmt.Sprint(l.Quantity)
		if l.Adjusted {
			qty += " (adjusted)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", l.Slug, qty, money.Exact(l.UnitPrice), money.Exact(l.LineTotal))
	}
	_ = tw.Flush()

	fmt.Fprintf(a.out, "\nSubtotal:  %s\n", money.Exact(q.Subtotal))
	fmt.Fprintf(a.out, "Shipping:  %s", money.Exact(q.Shipping.Cost))
	if q.Shipping.Label != "" {
		fmt.Fprintf(a.out, " (%s)", q.Shipping.Label)
	}
	fmt.Fprintln(a.out)
	if q.Coupon.Applied {
		fmt.Fprintf(a.out, "Coupon:    %s (-%s)\n", q.Coupon.Code, money.Exact(q.Coupon.Discount))
	}
	fmt.Fprintf(a.out, "Total:     %s %s\n", money.Exact(q.Total), strings.ToUpper(q.Currency))
	return nil
}

func (a *app) startCheckout(ctx context.Context) error {
	req, err := a.store.CheckoutRequest(a.coupon)
	if err != nil {
		return a.explain(err)
	}
	resp, err := a.checkout.CreateSession(ctx, req)
	if err != nil {
		if client.IsTemporary(err) {
			return fmt.Errorf("%w (try again in a moment)", err)
		}
		return err
	}
	if resp.URL == "" {
		return errors.New("checkout returned no payment URL")
	}
	if resp.ShippingLabel != "" {
		fmt.Fprintf(a.out, "Shipping: %s (%s)\n", money.Exact(resp.ShippingCost), resp.ShippingLabel)
	}
	fmt.Fprintf(a.out, "Continue to payment: %s\n", resp.URL)
	return nil
}

// visit clears the cart when url is the post-payment success page and then
// prints what was paid.
func (a *app) visit(ctx context.Context, rawURL string) error {
	if !a.store.Navigate(ctx, rawURL) {
		fmt.Fprintln(a.out, "Cart unchanged")
		return nil
	}
	fmt.Fprintln(a.out, "Payment confirmed, cart cleared")

	id := sessionID(rawURL)
	if id == "" {
		return nil
	}
	s, err := a.checkout.Session(ctx, id)
	if err != nil {
		fmt.Fprintln(a.out, "Order details unavailable:", err)
		return nil
	}
	for _, l := range s.Lines {
		fmt.Fprintf(a.out, "  %d × %s  %s\n", l.Quantity, l.Description, money.Exact(l.AmountTotal))
	}
	fmt.Fprintf(a.out, "Paid: %s %s\n", money.Exact(s.AmountTotal), strings.ToUpper(s.Currency))
	return nil
}

func (a *app) explain(err error) error {
	var stale *service.StaleItemError
	switch {
	case errors.Is(err, service.ErrEmptyCart):
		return errors.New("your cart is empty")
	case errors.As(err, &stale):
		return fmt.Errorf("remove and add again: %s", strings.Join(stale.Names, ", "))
	}
	return err
}

func sessionID(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return u.Query().Get(service.SessionParam)
}
