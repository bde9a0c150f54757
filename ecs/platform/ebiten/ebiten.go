// Package ebiten drives an ecs.App from the Ebiten game loop: each Ebiten
// Update is one App tick.
package ebiten

import (
	"context"
	"errors"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/plus3/ecscore/ecs"
	"go.uber.org/multierr"
)

// ScreenSize is the resource holding the outside size of the window, as last
// reported to Layout.
type ScreenSize struct {
	Width, Height int
}

// DrawFunc renders the App to the screen. It runs outside of any tick.
type DrawFunc func(app *ecs.App, screen *ebiten.Image)

// Game implements ebiten.Game for an App.
type Game struct {
	app    *ecs.App
	ctx    context.Context
	draw   DrawFunc
	width  int
	height int
	size   ScreenSize
}

type Option func(*Game)

// WithDraw sets the function called by Draw.
func WithDraw(draw DrawFunc) Option {
	return func(g *Game) {
		g.draw = draw
	}
}

// WithLogicalSize fixes the logical screen size returned from Layout.
// By default the logical size follows the window.
func WithLogicalSize(width, height int) Option {
	return func(g *Game) {
		g.width, g.height = width, height
	}
}

// NewGame wraps app. Ticks run with ctx, and cancelling it ends the game.
func NewGame(ctx context.Context, app *ecs.App, opts ...Option) *Game {
	g := &Game{app: app, ctx: ctx}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Update ticks the App with a fixed delta of one Ebiten tick.
func (g *Game) Update() error {
	if g.ctx.Err() != nil {
		return ebiten.Termination
	}

	for _, aw := range g.app.Worlds() {
		ecs.InsertResource(aw.World, g.size)
	}

	err := g.app.Tick(g.ctx, 1/float64(ebiten.TPS()))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ecs.ErrClosed), errors.Is(err, context.Canceled):
		return ebiten.Termination
	}
	return err
}

func (g *Game) Draw(screen *ebiten.Image) {
	if g.draw != nil {
		g.draw(g.app, screen)
	}
}

func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	g.size = ScreenSize{Width: outsideWidth, Height: outsideHeight}
	if g.width > 0 && g.height > 0 {
		return g.width, g.height
	}
	return outsideWidth, outsideHeight
}

// Run opens a window and runs the App until the window closes, ctx is
// cancelled or a tick fails. The App is closed before Run returns.
func Run(ctx context.Context, app *ecs.App, title string, width, height int, opts ...Option) error {
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowTitle(title)

	err := ebiten.RunGame(NewGame(ctx, app, opts...))
	return multierr.Append(err, app.Close(context.WithoutCancel(ctx)))
}
