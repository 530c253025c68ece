package shop

import (
	"context"
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/shop/internal/domain"
	"github.com/vladislavdragonenkov/shop/internal/storage"
)

// MemberService регистрирует участников и меняет их данные.
type MemberService struct {
	uow    storage.UnitOfWork
	logger *log.Entry
}

// NewMemberService конструирует сервис участников.
func NewMemberService(uow storage.UnitOfWork, options ...Option) *MemberService {
	opts := buildOptions("member-service", options)
	return &MemberService{uow: uow, logger: opts.Logger}
}

// Join регистрирует участника. Имя должно быть уникальным.
func (s *MemberService) Join(ctx context.Context, member *domain.Member) (int64, error) {
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		existing, err := tx.Members.FindByName(ctx, member.Name)
		if err != nil {
			return err
		}
		if len(existing) > 0 {
			return fmt.Errorf("%w: %q", domain.ErrDuplicateMember, member.Name)
		}
		return tx.Members.Create(ctx, member)
	})
	if err != nil {
		s.logger.WithError(err).WithField("name", member.Name).Warn("member join failed")
		return 0, err
	}

	s.logger.WithFields(log.Fields{
		"member_id": member.ID,
		"name":      member.Name,
	}).Info("member joined")
	return member.ID, nil
}

// FindMembers возвращает всех участников.
func (s *MemberService) FindMembers(ctx context.Context) ([]*domain.Member, error) {
	var members []*domain.Member
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		members, err = tx.Members.List(ctx)
		return err
	})
	return members, err
}

// FindOne возвращает участника по ID.
func (s *MemberService) FindOne(ctx context.Context, memberID int64) (*domain.Member, error) {
	var member *domain.Member
	err := s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		var err error
		member, err = tx.Members.Get(ctx, memberID)
		return err
	})
	return member, err
}

// UpdateName переименовывает участника.
func (s *MemberService) UpdateName(ctx context.Context, memberID int64, name string) error {
	return s.uow.Do(ctx, func(ctx context.Context, tx storage.Tx) error {
		member, err := tx.Members.Get(ctx, memberID)
		if err != nil {
			return err
		}
		if err := member.Rename(name); err != nil {
			return err
		}
		return tx.Members.Save(ctx, member)
	})
}
