// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package postgres_test

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/holomush/procauth/internal/security"
	"github.com/holomush/procauth/internal/security/postgres"
	"github.com/holomush/procauth/internal/store"
)

var _ = Describe("Realm", Ordered, func() {
	var (
		ctx       context.Context
		container *tcpostgres.PostgresContainer
		pool      *pgxpool.Pool
		realm     *postgres.Realm
	)

	BeforeAll(func() {
		ctx = context.Background()
		var err error
		container, err = tcpostgres.Run(ctx,
			"postgres:16-alpine",
			tcpostgres.WithDatabase("realm"),
			tcpostgres.WithUsername("procauth"),
			tcpostgres.WithPassword("procauth"),
			testcontainers.WithWaitStrategy(
				wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(30*time.Second),
			),
		)
		Expect(err).NotTo(HaveOccurred())

		connStr, err := container.ConnectionString(ctx, "sslmode=disable")
		Expect(err).NotTo(HaveOccurred())

		migrator, err := store.NewMigrator(connStr)
		Expect(err).NotTo(HaveOccurred())
		Expect(migrator.Up()).To(Succeed())
		Expect(migrator.Close()).To(Succeed())

		pool, err = store.Connect(ctx, connStr, store.DefaultConnectOptions())
		Expect(err).NotTo(HaveOccurred())
		realm = postgres.NewRealm(pool)
	})

	AfterAll(func() {
		if pool != nil {
			pool.Close()
		}
		if container != nil {
			_ = container.Terminate(ctx)
		}
	})

	It("starts with the predefined roles", func() {
		roles, err := realm.ListRoles(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(roles).To(Equal(security.PredefinedRoles()))
	})

	It("creates users and rejects duplicates", func() {
		u, err := realm.NewUser(ctx, "alice", "hash", false)
		Expect(err).NotTo(HaveOccurred())
		Expect(u.CreatedAt).NotTo(BeZero())

		_, err = realm.NewUser(ctx, "alice", "hash", false)
		Expect(err).To(MatchError(security.ErrExists))
	})

	It("grants and revokes roles", func() {
		Expect(realm.NewRole(ctx, "auditor")).To(Succeed())
		Expect(realm.AddRoleToUser(ctx, "admin", "alice")).To(Succeed())
		Expect(realm.AddRoleToUser(ctx, "auditor", "alice")).To(Succeed())
		Expect(realm.AddRoleToUser(ctx, "auditor", "alice")).To(Succeed())

		u, err := realm.GetUser(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Roles).To(Equal([]string{"admin", "auditor"}))

		Expect(realm.AddRoleToUser(ctx, "ghost", "alice")).To(MatchError(security.ErrNotFound))
		Expect(realm.AddRoleToUser(ctx, "reader", "ghost")).To(MatchError(security.ErrNotFound))

		users, err := realm.UsersForRole(ctx, "auditor")
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(Equal([]string{"alice"}))

		Expect(realm.DeleteRole(ctx, "auditor")).To(Succeed())
		u, err = realm.GetUser(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.Roles).To(Equal([]string{"admin"}))
	})

	It("updates flags and deletes users", func() {
		Expect(realm.SetPassword(ctx, "alice", "hash2", true)).To(Succeed())
		Expect(realm.SetSuspended(ctx, "alice", true)).To(Succeed())

		u, err := realm.GetUser(ctx, "alice")
		Expect(err).NotTo(HaveOccurred())
		Expect(u.PasswordHash).To(Equal("hash2"))
		Expect(u.Flags()).To(ConsistOf(security.FlagSuspended, security.FlagPasswordChangeRequired))

		Expect(realm.DeleteUser(ctx, "alice")).To(Succeed())
		_, err = realm.GetUser(ctx, "alice")
		Expect(err).To(MatchError(security.ErrNotFound))

		users, err := realm.UsersForRole(ctx, "admin")
		Expect(err).NotTo(HaveOccurred())
		Expect(users).To(BeEmpty())
	})
})
