package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"warbler/internal/auth"
	"warbler/internal/models"
	"warbler/internal/store"
)

type usersPage struct {
	Users []models.User
	Query string
}

// profilePage backs the profile and its following/followers/likes tabs.
type profilePage struct {
	User        *models.User
	Stats       store.UserStats
	IsFollowing bool
	Messages    []models.Message
	Liked       map[uint]bool
	Users       []models.User
}

func (s *Server) listUsers(ctx context.Context, req *Request) (*Response, error) {
	q := strings.TrimSpace(req.HTTP.URL.Query().Get("q"))
	users, err := s.store.ListUsers(ctx, q)
	if err != nil {
		return nil, err
	}
	return render("users/index.html", "Users", usersPage{Users: users, Query: q}), nil
}

// loadProfile fetches the user behind the {id} route variable together
// with the counters and viewer state shown in the profile header.
func (s *Server) loadProfile(ctx context.Context, req *Request) (*profilePage, error) {
	id, err := pathID(req, "id")
	if err != nil {
		return nil, err
	}
	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return nil, err
	}
	stats, err := s.store.CountUserStats(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &profilePage{User: user, Stats: stats}
	if req.User != nil {
		if p.IsFollowing, err = s.store.IsFollowing(ctx, req.User.ID, id); err != nil {
			return nil, err
		}
		if p.Liked, err = s.store.LikedMessageIDs(ctx, req.User.ID); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (s *Server) showUser(ctx context.Context, req *Request) (*Response, error) {
	p, err := s.loadProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	if p.Messages, err = s.store.UserMessages(ctx, p.User.ID, store.FeedLimit); err != nil {
		return nil, err
	}
	return render("users/show.html", "@"+p.User.Username, p), nil
}

func (s *Server) showFollowing(ctx context.Context, req *Request) (*Response, error) {
	if req.User == nil {
		return unauthorizedRedirect(), nil
	}
	p, err := s.loadProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	if p.Users, err = s.store.Following(ctx, p.User.ID); err != nil {
		return nil, err
	}
	return render("users/following.html", "Following", p), nil
}

func (s *Server) showFollowers(ctx context.Context, req *Request) (*Response, error) {
	if req.User == nil {
		return unauthorizedRedirect(), nil
	}
	p, err := s.loadProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	if p.Users, err = s.store.Followers(ctx, p.User.ID); err != nil {
		return nil, err
	}
	return render("users/followers.html", "Followers", p), nil
}

func (s *Server) showLikes(ctx context.Context, req *Request) (*Response, error) {
	if req.User == nil {
		return unauthorizedRedirect(), nil
	}
	p, err := s.loadProfile(ctx, req)
	if err != nil {
		return nil, err
	}
	if p.Messages, err = s.store.LikedMessages(ctx, p.User.ID); err != nil {
		return nil, err
	}
	return render("users/likes.html", "Likes", p), nil
}

func followingPath(u *models.User) string {
	return fmt.Sprintf("/users/%d/following", u.ID)
}

func (s *Server) follow(ctx context.Context, req *Request) (*Response, error) {
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

	var created bool
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if _, err := tx.GetUser(ctx, id); err != nil {
			return err
		}
		var err error
		created, err = tx.AddFollowEdge(ctx, req.User.ID, id)
		return err
	})
	if errors.Is(err, store.ErrCannotFollowSelf) {
		return redirect(followingPath(req.User), auth.Danger("You can't follow yourself.")), nil
	}
	if err != nil {
		return nil, err
	}
	if created {
		s.metrics.FollowRequests.WithLabelValues("/users/follow").Inc()
	}
	return redirect(followingPath(req.User)), nil
}

func (s *Server) stopFollowing(ctx context.Context, req *Request) (*Response, error) {
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

	var removed bool
	err = s.store.Transaction(ctx, func(tx *store.Store) error {
		if _, err := tx.GetUser(ctx, id); err != nil {
			return err
		}
		var err error
		removed, err = tx.RemoveFollowEdge(ctx, req.User.ID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	if removed {
		s.metrics.UnfollowRequests.WithLabelValues("/users/stop-following").Inc()
	}
	return redirect(followingPath(req.User)), nil
}

func (s *Server) editProfile(ctx context.Context, req *Request) (*Response, error) {
	if req.User == nil {
		return nil, ErrUnauthorized
	}
	if req.HTTP.Method == http.MethodGet {
		return render("users/edit.html", "Edit profile", formPage{Form: profileFormFor(req.User)}), nil
	}

	form := bindProfile(req)
	errs := form.validate()
	s.checkToken(req, errs)
	if len(errs) > 0 {
		return render("users/edit.html", "Edit profile", formPage{Form: form, Errors: errs}), nil
	}
	if !auth.CheckPasswordHash(form.Password, req.User.Password) {
		return redirect("/", auth.Danger("Incorrect password.")), nil
	}

	updated := *req.User
	form.apply(&updated)
	err := s.store.Transaction(ctx, func(tx *store.Store) error {
		return tx.UpdateUser(ctx, &updated)
	})
	if errors.Is(err, store.ErrUniquenessViolation) {
		return render("users/edit.html", "Edit profile", formPage{Form: form},
			auth.Danger("Username already taken")), nil
	}
	if err != nil {
		return nil, err
	}
	return redirect(fmt.Sprintf("/users/%d", updated.ID)), nil
}

func (s *Server) deleteUser(ctx context.Context, req *Request) (*Response, error) {
	if _, err := s.guard.Validate(req.HTTP, req.session); err != nil {
		return nil, err
	}
	if req.User == nil {
		return unauthorizedRedirect(), nil
	}
	if err := s.store.DeleteUser(ctx, req.User.ID); err != nil {
		return nil, err
	}
	s.log.WithField("user_id", req.User.ID).Info("User deleted")

	resp := redirect("/signup")
	resp.Logout = true
	return resp, nil
}
