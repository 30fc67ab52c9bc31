package server

import (
	"context"
	"fmt"
	"net/http"

	"warbler/internal/auth"
	"warbler/internal/models"
	"warbler/internal/store"
)

type messagePage struct {
	Message *models.Message
	Liked   bool
}

type feedPage struct {
	Messages []models.Message
	Liked    map[uint]bool
}

type anonPage struct {
	Username string
	Password string
}

func (s *Server) home(ctx context.Context, req *Request) (*Response, error) {
	if req.User == nil {
		return render("home-anon.html", "", anonPage{
			Username: s.cfg.DemoUsername,
			Password: s.cfg.DemoPassword,
		}), nil
	}

	msgs, err := s.store.Feed(ctx, req.User.ID, store.FeedLimit)
	if err != nil {
		return nil, err
	}
	liked, err := s.store.LikedMessageIDs(ctx, req.User.ID)
	if err != nil {
		return nil, err
	}
	return render("home.html", "", feedPage{Messages: msgs, Liked: liked}), nil
}

func (s *Server) newMessage(ctx context.Context, req *Request) (*Response, error) {
	if req.User == nil {
		return unauthorizedRedirect(), nil
	}
	if req.HTTP.Method == http.MethodGet {
		return render("messages/new.html", "New message", formPage{Form: messageForm{}}), nil
	}

	form := messageForm{Text: req.Form("text")}
	errs := form.validate()
	s.checkToken(req, errs)
	if len(errs) > 0 {
		return render("messages/new.html", "New message", formPage{Form: form, Errors: errs}), nil
	}
	if _, err := s.store.CreateMessage(ctx, req.User.ID, form.Text); err != nil {
		return nil, err
	}
	s.metrics.MessagesSent.WithLabelValues("/messages/new").Inc()
	return redirect(fmt.Sprintf("/users/%d", req.User.ID)), nil
}

func (s *Server) showMessage(ctx context.Context, req *Request) (*Response, error) {
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}
	msg, err := s.store.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}

	page := messagePage{Message: msg}
	if req.User != nil {
		if page.Liked, err = s.store.IsLikedBy(ctx, msg.ID, req.User.ID); err != nil {
			return nil, err
		}
	}
	return render("messages/show.html", "Message", page), nil
}

func (s *Server) deleteMessage(ctx context.Context, req *Request) (*Response, error) {
	if _, err := s.guard.Validate(req.HTTP, req.session); err != nil {
		return nil, err
	}
	if req.User == nil {
		return unauthorizedRedirect(), nil
	}
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}

	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		msg, err := tx.GetMessage(ctx, id)
		if err != nil {
			return err
		}
		if msg.UserID != req.User.ID {
			return ErrUnauthorized
		}
		return tx.DeleteMessage(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return redirect(fmt.Sprintf("/users/%d", req.User.ID)), nil
}

func (s *Server) likeMessage(ctx context.Context, req *Request) (*Response, error) {
	callback, err := s.guard.Validate(req.HTTP, req.session)
	if err != nil {
		return nil, err
	}
	if req.User == nil {
		return unauthorizedRedirect(), nil
	}
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}

	var own, created bool
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		msg, err := tx.GetMessage(ctx, id)
		if err != nil {
			return err
		}
		if msg.UserID == req.User.ID {
			own = true
			return nil
		}
		created, err = tx.AddLikeEdge(ctx, req.User.ID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if own {
		return redirect(callback, auth.Danger("You can't like your own warbles!")), nil
	}
	if created {
		s.metrics.LikeRequests.WithLabelValues("like").Inc()
	}
	return redirect(callback), nil
}

func (s *Server) unlikeMessage(ctx context.Context, req *Request) (*Response, error) {
	callback, err := s.guard.Validate(req.HTTP, req.session)
	if err != nil {
		return nil, err
	}
	if req.User == nil {
		return unauthorizedRedirect(), nil
	}
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}

	removed, err := s.store.RemoveLikeEdge(ctx, req.User.ID, id)
	if err != nil {
		return nil, err
	}
	if removed {
		s.metrics.LikeRequests.WithLabelValues("unlike").Inc()
	}
	return redirect(callback), nil
}
