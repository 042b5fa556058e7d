package handlers

import (
	"context"

	"github.com/stretchr/testify/mock"

	"complaintdesk/internal/licensing"
	"complaintdesk/internal/lifecycle"
	"complaintdesk/internal/remote"
)

type mockRemote struct {
	mock.Mock
}

func (m *mockRemote) Login(ctx context.Context, email, password string) (*remote.LoginResult, error) {
	args := m.Called(ctx, email, password)
	res, _ := args.Get(0).(*remote.LoginResult)
	return res, args.Error(1)
}

func (m *mockRemote) Profile(ctx context.Context, token string) (*remote.User, error) {
	args := m.Called(ctx, token)
	res, _ := args.Get(0).(*remote.User)
	return res, args.Error(1)
}

func (m *mockRemote) ListComplaints(ctx context.Context, token string, f remote.ComplaintFilter) ([]remote.Complaint, error) {
	args := m.Called(ctx, token, f)
	res, _ := args.Get(0).([]remote.Complaint)
	return res, args.Error(1)
}

func (m *mockRemote) GetComplaint(ctx context.Context, token, id string) (*remote.Complaint, error) {
	args := m.Called(ctx, token, id)
	res, _ := args.Get(0).(*remote.Complaint)
	return res, args.Error(1)
}

func (m *mockRemote) FileComplaint(ctx context.Context, token string, in remote.NewComplaint) (*remote.Complaint, error) {
	args := m.Called(ctx, token, in)
	res, _ := args.Get(0).(*remote.Complaint)
	return res, args.Error(1)
}

func (m *mockRemote) MutateComplaint(ctx context.Context, token string, a lifecycle.Action, mu remote.Mutation) (*remote.Complaint, error) {
	args := m.Called(ctx, token, a, mu)
	res, _ := args.Get(0).(*remote.Complaint)
	return res, args.Error(1)
}

func (m *mockRemote) ListMembers(ctx context.Context, token string, kind licensing.Kind, companyID string) ([]remote.Member, error) {
	args := m.Called(ctx, token, kind, companyID)
	res, _ := args.Get(0).([]remote.Member)
	return res, args.Error(1)
}

func (m *mockRemote) SaveMember(ctx context.Context, token string, kind licensing.Kind, in remote.SaveMember) (*remote.Member, error) {
	args := m.Called(ctx, token, kind, in)
	res, _ := args.Get(0).(*remote.Member)
	return res, args.Error(1)
}

func (m *mockRemote) DeleteMember(ctx context.Context, token string, kind licensing.Kind, companyID, id string) error {
	return m.Called(ctx, token, kind, companyID, id).Error(0)
}

func (m *mockRemote) Licenses(ctx context.Context, token, companyID string) (licensing.Summary, error) {
	args := m.Called(ctx, token, companyID)
	res, _ := args.Get(0).(licensing.Summary)
	return res, args.Error(1)
}
