package services

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/javajoker/batch-settlement/internal/models"
	"github.com/javajoker/batch-settlement/internal/testutil"
	"github.com/javajoker/batch-settlement/internal/utils"
)

type AuthServiceTestSuite struct {
	serviceSuite
}

func TestAuthServiceTestSuite(t *testing.T) {
	suite.Run(t, new(AuthServiceTestSuite))
}

func (s *AuthServiceTestSuite) TestLoginWithSeededAdmin() {
	resp, err := s.svc.Auth.Login(s.ctx, &LoginRequest{
		Username: testutil.AdminUsername,
		Password: testutil.AdminPassword,
	})
	s.Require().NoError(err)
	s.Equal("Bearer", resp.TokenType)
	s.Equal(3600, resp.ExpiresIn)
	s.NotNil(resp.Operator.LastLoginAt)

	claims, err := utils.ValidateJWT(resp.AccessToken)
	s.Require().NoError(err)
	s.Equal(resp.Operator.ID.String(), claims.OperatorID)
	s.Equal(string(models.OperatorRoleAdmin), claims.Role)
}

func (s *AuthServiceTestSuite) TestLoginRejectsBadCredentials() {
	_, err := s.svc.Auth.Login(s.ctx, &LoginRequest{Username: testutil.AdminUsername, Password: "wrong-password"})
	s.ErrorIs(err, ErrInvalidCredentials)

	_, err = s.svc.Auth.Login(s.ctx, &LoginRequest{Username: "nobody", Password: "whatever"})
	s.ErrorIs(err, ErrInvalidCredentials)
}

func (s *AuthServiceTestSuite) TestCreateOperator() {
	op, err := s.svc.Auth.CreateOperator(s.ctx, &CreateOperatorRequest{
		Username: "cashier",
		Password: "cashier-password",
		Role:     models.OperatorRoleOperator,
	})
	s.Require().NoError(err)
	s.Equal(models.OperatorRoleOperator, op.Role)

	_, err = s.svc.Auth.CreateOperator(s.ctx, &CreateOperatorRequest{
		Username: "cashier",
		Password: "cashier-password",
		Role:     models.OperatorRoleOperator,
	})
	s.Equal(KindValidation, KindOf(err))

	_, err = s.svc.Auth.CreateOperator(s.ctx, &CreateOperatorRequest{
		Username: "auditor",
		Password: "auditor-password",
		Role:     "superuser",
	})
	s.Equal(KindValidation, KindOf(err))

	resp, err := s.svc.Auth.Login(s.ctx, &LoginRequest{Username: "cashier", Password: "cashier-password"})
	s.Require().NoError(err)
	s.Equal(op.ID, resp.Operator.ID)
}
