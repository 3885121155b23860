package sqlinline

const QUpsertGuestPrincipal = `--sql 7c1f4ad2-90b3-4e2a-8f41-cf32a14b96d0
insert into principals (id, device_token, plan, daily_window_start, monthly_window_start, created_at, updated_at)
values (gen_random_uuid(), $1::text, 'guest', now(), now(), now(), now())
on conflict (device_token) do update set updated_at = now()
returning id;
`

const QSelectPrincipal = `--sql 9d7e2c40-6b1a-4f8e-9a02-54e8c3b7d1aa
select
    id,
    coalesce(device_token, ''),
    coalesce(email, ''),
    plan,
    plan_expires_at,
    daily_count,
    daily_window_start,
    monthly_count,
    monthly_window_start,
    extra_credits,
    created_at,
    updated_at
from principals
where id = $1::uuid
limit 1;
`

// QReserveDaily admits a guest request and consumes one daily allowance in a
// single statement. The window restarts 24h after first use.
const QReserveDaily = `--sql 2b64f9e1-3a57-4c0d-b8e6-91d0a27c5f33
update principals
set daily_count = case
        when daily_window_start <= now() - interval '24 hours' then 1
        else daily_count + 1
    end,
    daily_window_start = case
        when daily_window_start <= now() - interval '24 hours' then now()
        else daily_window_start
    end,
    updated_at = now()
where id = $1::uuid
  and (daily_count < $2::int or daily_window_start <= now() - interval '24 hours')
returning daily_count;
`

// QReserveMonthly admits a free-tier request against the calendar-month window.
const QReserveMonthly = `--sql e8a01b7f-52c9-4d36-a4f0-0c6b8e92d415
update principals
set monthly_count = case
        when monthly_window_start < date_trunc('month', now()) then 1
        else monthly_count + 1
    end,
    monthly_window_start = case
        when monthly_window_start < date_trunc('month', now()) then date_trunc('month', now())
        else monthly_window_start
    end,
    updated_at = now()
where id = $1::uuid
  and (monthly_count < $2::int or monthly_window_start < date_trunc('month', now()))
returning monthly_count;
`

// QReserveProOrCredit consumes a monthly allowance when available, otherwise
// one extra credit, as a single locked statement. Returns the pool debited.
const QReserveProOrCredit = `--sql 4fd3c8a6-1e72-4b95-8d04-7a2f60b1c9ee
with cur as (
    select id, monthly_count, monthly_window_start, extra_credits,
           (monthly_window_start < date_trunc('month', now())) as stale
    from principals
    where id = $1::uuid
    for update
),
upd as (
    update principals p
    set monthly_count = case
            when cur.stale then 1
            when cur.monthly_count < $2::int then cur.monthly_count + 1
            else cur.monthly_count
        end,
        monthly_window_start = case
            when cur.stale then date_trunc('month', now())
            else cur.monthly_window_start
        end,
        extra_credits = case
            when cur.stale or cur.monthly_count < $2::int then cur.extra_credits
            else cur.extra_credits - 1
        end,
        updated_at = now()
    from cur
    where p.id = cur.id
      and (cur.stale or cur.monthly_count < $2::int or cur.extra_credits > 0)
    returning
        case when cur.stale or cur.monthly_count < $2::int then 'monthly' else 'credit' end as pool,
        p.monthly_count,
        p.extra_credits
)
select pool, monthly_count, extra_credits from upd;
`

const QRefundDaily = `--sql a95b20d4-7f18-4c63-9e2a-b40d1c86f572
update principals
set daily_count = greatest(daily_count - 1, 0), updated_at = now()
where id = $1::uuid;
`

const QRefundMonthly = `--sql 61e84f2b-9c05-4ad7-b3f1-28c9e07a64dd
update principals
set monthly_count = greatest(monthly_count - 1, 0), updated_at = now()
where id = $1::uuid;
`

const QRefundCredit = `--sql c37a95e0-48d2-4f6b-a1c8-905e2b7f13a6
update principals
set extra_credits = extra_credits + 1, updated_at = now()
where id = $1::uuid;
`

const QAddCredits = `--sql f50c2d81-36b9-4e74-92a5-d18f7c40be29
update principals
set extra_credits = extra_credits + $2::int, updated_at = now()
where id = $1::uuid;
`

// QExtendPlan activates or additively extends a paid plan: an unexpired plan
// keeps its remaining days.
const QExtendPlan = `--sql 83b6e1f9-24d0-4a58-bc37-6f90a5d21c84
update principals
set plan = $2::text,
    plan_expires_at = greatest(coalesce(plan_expires_at, now()), now()) + make_interval(days => $3::int),
    updated_at = now()
where id = $1::uuid;
`

// QQuotaSnapshot projects current counters with expired windows read as zero.
const QQuotaSnapshot = `--sql 1da74c06-b58e-4f23-a907-3e61d2c85fb0
select
    plan,
    plan_expires_at,
    case when daily_window_start <= now() - interval '24 hours' then 0 else daily_count end,
    case when monthly_window_start < date_trunc('month', now()) then 0 else monthly_count end,
    extra_credits
from principals
where id = $1::uuid
limit 1;
`
