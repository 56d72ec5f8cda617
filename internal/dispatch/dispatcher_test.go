// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package dispatch_test

import (
	"context"
	"sync"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/procauth/internal/callctx"
	"github.com/holomush/procauth/internal/dispatch"
	"github.com/holomush/procauth/internal/procedure"
	"github.com/holomush/procauth/internal/security"
	"github.com/holomush/procauth/internal/session"
	"github.com/holomush/procauth/pkg/errutil"
)

// plainHasher stores passwords as "plain:<password>".
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain:" + password, nil }
func (plainHasher) Verify(password, hash string) (bool, error) {
	return hash == "plain:"+password, nil
}

// probe exposes the call context a procedure receives.
type probe struct{}

func (probe) Namespace() string { return "test" }
func (probe) Procedures() []procedure.Definition {
	return []procedure.Definition{{
		Name:     "whoAmI",
		Requires: []procedure.Capability{procedure.CapabilityAuthSubject, procedure.CapabilityAccessMode},
		Outputs:  []string{"subject", "mode", "call_id"},
		Func: func(ctx context.Context, c *procedure.Components, _ procedure.Args) ([]procedure.Record, error) {
			subject, err := security.SubjectFrom(c)
			if err != nil {
				return nil, err
			}
			mode, err := security.AccessModeFrom(c)
			if err != nil {
				return nil, err
			}
			cc, _ := callctx.FromContext(ctx)
			return []procedure.Record{{"subject": subject.String(), "mode": mode.Name(), "call_id": cc.CallID()}}, nil
		},
	}}
}

var _ = Describe("Dispatcher", func() {
	var (
		ctx        context.Context
		realm      *security.MemoryRealm
		sessions   *session.Manager
		dispatcher *dispatch.Dispatcher
		alice, bob session.Session
	)

	BeforeEach(func() {
		ctx = context.Background()
		realm = security.NewMemoryRealm()
		for name, role := range map[string]string{"alice": security.RoleAdmin, "bob": security.RoleReader} {
			_, err := realm.NewUser(ctx, name, "plain:pw", false)
			Expect(err).NotTo(HaveOccurred())
			Expect(realm.AddRoleToUser(ctx, role, name)).To(Succeed())
		}

		registry := procedure.NewRegistry(procedure.NewResolver())
		provider := security.NewProvider(security.NewProcedures(realm, plainHasher{}), probe{})
		Expect(provider.Register(registry)).To(Succeed())
		registry.Seal()

		var err error
		dispatcher, err = dispatch.New(registry, realm)
		Expect(err).NotTo(HaveOccurred())

		sessions = session.NewManager(realm, plainHasher{})
		alice, err = sessions.Login(ctx, "alice", "pw")
		Expect(err).NotTo(HaveOccurred())
		bob, err = sessions.Login(ctx, "bob", "pw")
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("building the call context", func() {
		It("injects the caller's subject and mode", func() {
			records, err := dispatcher.Call(ctx, bob, "test.whoAmI", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0]["subject"]).To(Equal("user:bob[reader]"))
			Expect(records[0]["mode"]).To(Equal("read"))
			Expect(records[0]["call_id"]).NotTo(BeEmpty())
		})

		It("gives every call its own id", func() {
			first, err := dispatcher.Call(ctx, bob, "test.whoAmI", nil)
			Expect(err).NotTo(HaveOccurred())
			second, err := dispatcher.Call(ctx, bob, "test.whoAmI", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(first[0]["call_id"]).NotTo(Equal(second[0]["call_id"]))
		})

		It("runs auth-disabled sessions with full access", func() {
			records, err := dispatcher.Call(ctx, sessions.AuthDisabled(), "test.whoAmI", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0]["subject"]).To(Equal("auth_disabled"))
			Expect(records[0]["mode"]).To(Equal("full"))
		})
	})

	Describe("listRoles", func() {
		It("scopes results to each caller under concurrency", func() {
			var wg sync.WaitGroup
			for i := range 100 {
				wg.Add(1)
				go func() {
					defer GinkgoRecover()
					defer wg.Done()

					if i%2 == 0 {
						records, err := dispatcher.Call(ctx, alice, "dbms.security.listRoles", nil)
						Expect(err).NotTo(HaveOccurred())
						Expect(records).To(HaveLen(4))
						return
					}
					records, err := dispatcher.Call(ctx, bob, "dbms.security.listRoles", nil)
					Expect(err).NotTo(HaveOccurred())
					Expect(records).To(Equal([]procedure.Record{{"role": "reader", "users": []string{"bob"}}}))
				}()
			}
			wg.Wait()
		})
	})

	Describe("reading the realm on every call", func() {
		It("applies role changes to the next call", func() {
			_, err := dispatcher.Call(ctx, bob, "dbms.security.listUsers", nil)
			Expect(err).To(MatchError(security.ErrPermissionDenied))

			_, err = dispatcher.Call(ctx, alice, "dbms.security.addRoleToUser", []any{"admin", "bob"})
			Expect(err).NotTo(HaveOccurred())

			records, err := dispatcher.Call(ctx, bob, "dbms.security.listUsers", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(2))
		})

		It("ends a suspended user's session", func() {
			_, err := dispatcher.Call(ctx, alice, "dbms.security.suspendUser", []any{"bob"})
			Expect(err).NotTo(HaveOccurred())

			_, err = dispatcher.Call(ctx, bob, "test.whoAmI", nil)
			Expect(err).To(MatchError(dispatch.ErrSessionInvalid))
			Expect(errutil.Code(err)).To(Equal(dispatch.CodeSessionInvalid))
		})

		It("ends a deleted user's session", func() {
			Expect(realm.DeleteUser(ctx, "bob")).To(Succeed())
			_, err := dispatcher.Call(ctx, bob, "test.whoAmI", nil)
			Expect(err).To(MatchError(dispatch.ErrSessionInvalid))
		})

		It("gives users with an expired password no permissions", func() {
			Expect(realm.SetPassword(ctx, "alice", "plain:pw2", true)).To(Succeed())
			records, err := dispatcher.Call(ctx, alice, "test.whoAmI", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0]["mode"]).To(Equal("credentials_expired"))

			_, err = dispatcher.Call(ctx, alice, "dbms.security.listUsers", nil)
			Expect(err).To(MatchError(security.ErrPermissionDenied))

			_, err = dispatcher.Call(ctx, alice, "dbms.security.changePassword", []any{"pw3"})
			Expect(err).NotTo(HaveOccurred())
			records, err = dispatcher.Call(ctx, alice, "test.whoAmI", nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(records[0]["mode"]).To(Equal("full"))
		})
	})

	Describe("failures", func() {
		It("rejects cancelled contexts before doing anything", func() {
			cancelled, cancel := context.WithCancel(ctx)
			cancel()
			_, err := dispatcher.Call(cancelled, bob, "test.whoAmI", nil)
			Expect(err).To(MatchError(dispatch.ErrCancelled))
			Expect(err).To(MatchError(context.Canceled))
		})

		It("reports unknown procedures", func() {
			_, err := dispatcher.Call(ctx, bob, "dbms.security.nope", nil)
			Expect(err).To(MatchError(procedure.ErrProcedureNotFound))
		})

		It("reports bad arguments", func() {
			_, err := dispatcher.Call(ctx, alice, "dbms.security.createUser", []any{"carol"})
			Expect(err).To(MatchError(procedure.ErrInvalidArgs))
		})
	})

	It("lists procedures by pattern", func() {
		descriptors, err := dispatcher.Procedures("dbms.security.list*")
		Expect(err).NotTo(HaveOccurred())
		names := make([]string, 0, len(descriptors))
		for _, d := range descriptors {
			names = append(names, d.Name())
		}
		Expect(names).To(Equal([]string{
			"dbms.security.listRoles",
			"dbms.security.listRolesForUser",
			"dbms.security.listUsers",
			"dbms.security.listUsersForRole",
		}))
	})
})
