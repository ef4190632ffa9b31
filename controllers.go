package main

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// App bundles the collaborators the handlers need. Explicit handles, no
// package-level singletons.
type App struct {
	store  Store
	mailer *Mailer
}

// -----------------------------
// Helper functions
// -----------------------------

func jsonError(c *gin.Context, code int, msg string) {
	c.JSON(code, gin.H{"error": msg})
}

// parseDate accepts RFC3339 or "YYYY-MM-DD".
func parseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, s)
	if err == nil {
		return t, nil
	}
	return time.Parse("2006-01-02", s)
}

// -----------------------------
// Neighbors
// -----------------------------

type CreateNeighborRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
}

func (a *App) ListNeighbors(c *gin.Context) {
	neighbors, err := a.store.Neighbors(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "store error: "+err.Error())
		return
	}
	if neighbors == nil {
		neighbors = []Neighbor{}
	}
	c.JSON(http.StatusOK, neighbors)
}

func (a *App) CreateNeighbor(c *gin.Context) {
	var body CreateNeighborRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	n, err := a.store.CreateNeighbor(c.Request.Context(), Neighbor{
		Name:    strings.TrimSpace(body.Name),
		Address: strings.TrimSpace(body.Address),
		Email:   strings.TrimSpace(body.Email),
		Phone:   strings.TrimSpace(body.Phone),
	})
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create neighbor: "+err.Error())
		return
	}
	c.JSON(http.StatusCreated, n)
}

func (a *App) UpdateNeighbor(c *gin.Context) {
	var patch NeighborPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	n, err := a.store.UpdateNeighbor(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		if errors.Is(err, ErrNeighborNotFound) {
			jsonError(c, http.StatusNotFound, "neighbor not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "could not update neighbor: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, n)
}

func (a *App) DeleteNeighbor(c *gin.Context) {
	if err := a.store.DeleteNeighbor(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrNeighborNotFound) {
			jsonError(c, http.StatusNotFound, "neighbor not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "could not delete neighbor: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "neighbor deleted"})
}

// -----------------------------
// Parties
// -----------------------------

type CreatePartyRequest struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	Date        string   `json:"date" binding:"required"` // RFC3339 or "YYYY-MM-DD"
	Place       string   `json:"place" binding:"required"`
	Comments    string   `json:"comments"`
	Menu        []string `json:"menu"`
}

type UpdatePartyRequest struct {
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	Date        *string  `json:"date"`
	Place       *string  `json:"place"`
	Comments    *string  `json:"comments"`
	Menu        []string `json:"menu"`
}

func (a *App) ListParties(c *gin.Context) {
	parties, err := a.store.Parties(c.Request.Context())
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "store error: "+err.Error())
		return
	}
	if parties == nil {
		parties = []Party{}
	}
	c.JSON(http.StatusOK, parties)
}

func (a *App) GetParty(c *gin.Context) {
	party, err := a.store.Party(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, ErrPartyNotFound) {
			jsonError(c, http.StatusNotFound, "party not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "store error: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, party)
}

func (a *App) CreateParty(c *gin.Context) {
	var body CreatePartyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	date, err := parseDate(body.Date)
	if err != nil {
		jsonError(c, http.StatusBadRequest, "invalid date format (use RFC3339 or YYYY-MM-DD)")
		return
	}

	menu := make([]MenuItem, 0, len(body.Menu))
	for _, name := range body.Menu {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		menu = append(menu, MenuItem{Name: name})
	}

	party, err := a.store.CreateParty(c.Request.Context(), Party{
		Name:        strings.TrimSpace(body.Name),
		Description: body.Description,
		Date:        date,
		Place:       body.Place,
		Comments:    body.Comments,
		Menu:        menu,
		Attendees:   []Attendee{},
	})
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not create party: "+err.Error())
		return
	}
	c.JSON(http.StatusCreated, party)
}

func (a *App) UpdateParty(c *gin.Context) {
	var body UpdatePartyRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid request: "+err.Error())
		return
	}

	var date time.Time
	if body.Date != nil {
		var err error
		date, err = parseDate(*body.Date)
		if err != nil {
			jsonError(c, http.StatusBadRequest, "invalid date format (use RFC3339 or YYYY-MM-DD)")
			return
		}
	}

	party, err := a.store.UpdateParty(c.Request.Context(), c.Param("id"), func(p *Party) error {
		if body.Name != nil {
			p.Name = strings.TrimSpace(*body.Name)
		}
		if body.Description != nil {
			p.Description = *body.Description
		}
		if body.Date != nil {
			p.Date = date
		}
		if body.Place != nil {
			p.Place = *body.Place
		}
		if body.Comments != nil {
			p.Comments = *body.Comments
		}
		if body.Menu != nil {
			p.Menu = mergeMenu(p.Menu, body.Menu)
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPartyNotFound) {
			jsonError(c, http.StatusNotFound, "party not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "could not update party: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, party)
}

// mergeMenu rebuilds the menu from the submitted names while keeping the
// existing claim on any dish that survives the edit.
func mergeMenu(current []MenuItem, names []string) []MenuItem {
	claims := make(map[string]*string, len(current))
	for _, item := range current {
		claims[item.Name] = item.BroughtBy
	}
	menu := make([]MenuItem, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		menu = append(menu, MenuItem{Name: name, BroughtBy: claims[name]})
	}
	return menu
}

func (a *App) DeleteParty(c *gin.Context) {
	if err := a.store.DeleteParty(c.Request.Context(), c.Param("id")); err != nil {
		if errors.Is(err, ErrPartyNotFound) {
			jsonError(c, http.StatusNotFound, "party not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "could not delete party: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "party deleted"})
}

// -----------------------------
// Invitations
// -----------------------------

type InviteRequest struct {
	NeighborIDs []string `json:"neighborIds" binding:"required"`
}

func (a *App) InviteNeighbors(c *gin.Context) {
	ctx := c.Request.Context()
	partyID := c.Param("id")

	party, err := a.store.Party(ctx, partyID)
	if err != nil {
		if errors.Is(err, ErrPartyNotFound) {
			jsonError(c, http.StatusNotFound, "party not found")
			return
		}
		jsonError(c, http.StatusInternalServerError, "store error: "+err.Error())
		return
	}

	var body InviteRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		jsonError(c, http.StatusBadRequest, "invalid body: "+err.Error())
		return
	}

	invitees := make([]Neighbor, 0, len(body.NeighborIDs))
	for _, id := range body.NeighborIDs {
		n, err := a.store.Neighbor(ctx, id)
		if err != nil {
			if errors.Is(err, ErrNeighborNotFound) {
				jsonError(c, http.StatusNotFound, "neighbor not found: "+id)
				return
			}
			jsonError(c, http.StatusInternalServerError, "store error: "+err.Error())
			return
		}
		invitees = append(invitees, n)
	}

	results, err := a.mailer.SendInvitations(ctx, party, invitees)
	if err != nil {
		jsonError(c, http.StatusBadGateway, err.Error())
		return
	}

	// Dispatch succeeded for at least one recipient: mark everyone on the
	// list as invited, including neighbors without an email address.
	updated, err := a.store.UpdateParty(ctx, partyID, func(p *Party) error {
		for _, n := range invitees {
			MarkInvited(p, n.ID)
		}
		return nil
	})
	if err != nil {
		jsonError(c, http.StatusInternalServerError, "could not record invitations: "+err.Error())
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "invitations sent",
		"results": results,
		"party":   updated,
	})
}

// -----------------------------
// Public RSVP pages
// -----------------------------

// ConfirmRSVP handles the links embedded in invitation emails:
// GET /rsvp?partyId=<id>&neighborId=<id>&status=attending|declined
func (a *App) ConfirmRSVP(c *gin.Context) {
	partyID := c.Query("partyId")
	neighborID := c.Query("neighborId")
	status := c.Query("status")

	if partyID == "" || neighborID == "" || (status != StatusAttending && status != StatusDeclined) {
		c.String(http.StatusBadRequest, "Paramètres de requête manquants ou invalides")
		return
	}

	_, err := a.store.UpdateParty(c.Request.Context(), partyID, func(p *Party) error {
		next, err := SetAttendeeStatus(*p, neighborID, status)
		if err != nil {
			return err
		}
		*p = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPartyNotFound) {
			c.HTML(http.StatusNotFound, "rsvp_error.html", gin.H{"Message": "Fête non trouvée."})
			return
		}
		c.String(http.StatusInternalServerError, "Erreur lors de la mise à jour de votre statut : "+err.Error())
		return
	}

	message := "Votre participation a bien été enregistrée. Merci !"
	if status == StatusDeclined {
		message = "Nous avons bien noté votre absence. Peut-être une prochaine fois !"
	}
	c.HTML(http.StatusOK, "rsvp_confirm.html", gin.H{"Message": message})
}

// RSVPLanding confirms attendance and shows the dish picker:
// GET /rsvp/:partyId/:neighborId
func (a *App) RSVPLanding(c *gin.Context) {
	partyID := c.Param("partyId")
	neighborID := c.Param("neighborId")

	party, err := a.store.UpdateParty(c.Request.Context(), partyID, func(p *Party) error {
		next, err := SetAttendeeStatus(*p, neighborID, StatusAttending)
		if err != nil {
			return err
		}
		*p = next
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPartyNotFound) {
			c.HTML(http.StatusNotFound, "rsvp_error.html", gin.H{"Message": "Fête non trouvée."})
			return
		}
		c.HTML(http.StatusInternalServerError, "rsvp_error.html", gin.H{
			"Message": "Impossible de confirmer votre présence ou de charger les détails de la fête.",
		})
		return
	}

	available := make([]MenuItem, 0, len(party.Menu))
	for _, item := range party.Menu {
		if item.BroughtBy == nil {
			available = append(available, item)
		}
	}

	c.HTML(http.StatusOK, "rsvp_landing.html", gin.H{
		"Party":     party,
		"Available": available,
	})
}

// SubmitMenuChoice records the dish picked on the landing page:
// POST /rsvp/:partyId/:neighborId with form field menuItem (a dish name,
// or "none" for bringing nothing).
func (a *App) SubmitMenuChoice(c *gin.Context) {
	ctx := c.Request.Context()
	partyID := c.Param("partyId")
	neighborID := c.Param("neighborId")

	choice := strings.TrimSpace(c.PostForm("menuItem"))
	if choice == "" {
		c.HTML(http.StatusBadRequest, "rsvp_error.html", gin.H{
			"Message": "Veuillez choisir un plat à apporter ou sélectionner l'option pour ne rien apporter.",
		})
		return
	}

	party, err := a.store.Party(ctx, partyID)
	if err != nil {
		if errors.Is(err, ErrPartyNotFound) {
			c.HTML(http.StatusNotFound, "rsvp_error.html", gin.H{"Message": "Fête non trouvée."})
			return
		}
		c.HTML(http.StatusInternalServerError, "rsvp_error.html", gin.H{
			"Message": "Une erreur s'est produite lors de l'enregistrement de votre choix.",
		})
		return
	}

	if choice != "none" {
		party, err = a.store.UpdateParty(ctx, partyID, func(p *Party) error {
			next, err := AssignMenuItem(*p, choice, neighborID)
			if err != nil {
				return err
			}
			*p = next
			return nil
		})
		if err != nil {
			code, message := menuClaimError(err)
			c.HTML(code, "rsvp_error.html", gin.H{"Message": message})
			return
		}
	}

	c.HTML(http.StatusOK, "rsvp_done.html", gin.H{"Party": party})
}

func menuClaimError(err error) (int, string) {
	switch {
	case errors.Is(err, ErrPartyNotFound):
		return http.StatusNotFound, "Fête non trouvée."
	case errors.Is(err, ErrNotAttending):
		return http.StatusForbidden, "Votre participation n'est pas confirmée pour cette fête."
	case errors.Is(err, ErrMenuItemNotFound):
		return http.StatusNotFound, "Ce plat n'existe pas dans le menu."
	case errors.Is(err, ErrMenuItemTaken):
		return http.StatusConflict, "Ce plat est déjà apporté par quelqu'un d'autre."
	default:
		return http.StatusInternalServerError, "Une erreur s'est produite lors de l'enregistrement de votre choix."
	}
}
