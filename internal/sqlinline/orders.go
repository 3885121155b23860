package sqlinline

const QInsertOrder = `--sql 5e20c7b4-8a91-4d3f-b6e5-12f4a09c87d2
insert into orders (
    id, principal_id, kind, params, amount_cents, currency, payment_ref,
    payment_status, order_status, plan_code, credit_pack_code, quota_pool,
    created_at, updated_at
)
values (
    $1::text, $2::uuid, $3::text, $4::jsonb, $5::bigint, $6::text, $7::text,
    'pending', 'pending', $8::text, $9::text, $10::text, now(), now()
);
`

const QSelectOrder = `--sql b1c8f5a3-0d64-4e27-9b80-6ea35d71f4c9
select
    id, principal_id, kind, params, amount_cents, currency,
    coalesce(payment_ref, ''), payment_status, order_status,
    coalesce(plan_code, ''), coalesce(credit_pack_code, ''),
    coalesce(quota_pool, ''), coalesce(artifact_url, ''),
    coalesce(error_message, ''), created_at, updated_at
from orders
where id = $1::text
limit 1;
`

const QSelectOrderByPaymentRef = `--sql 74a9d0e6-3b25-4c81-af97-c50e18b6d23f
select
    id, principal_id, kind, params, amount_cents, currency,
    coalesce(payment_ref, ''), payment_status, order_status,
    coalesce(plan_code, ''), coalesce(credit_pack_code, ''),
    coalesce(quota_pool, ''), coalesce(artifact_url, ''),
    coalesce(error_message, ''), created_at, updated_at
from orders
where payment_ref = $1::text
limit 1;
`

// QMarkOrderPaid flips the payment to paid and promotes a pending order to
// processing in one statement. A second delivery matches no row.
const QMarkOrderPaid = `--sql 09e5b3f8-62c7-4da1-8f30-b47a91c06e5d
update orders
set payment_status = 'paid',
    order_status = case when order_status = 'pending' then 'processing' else order_status end,
    updated_at = now()
where id = $1::text
  and payment_status = 'pending'
returning order_status;
`

const QMarkPaymentFailed = `--sql d6f12a85-940b-4c7e-ae63-2c85f0b9d714
update orders
set payment_status = $2::text,
    order_status = case
        when $2::text = 'canceled' and order_status = 'pending' then 'cancelled'
        else order_status
    end,
    updated_at = now()
where id = $1::text
  and payment_status = 'pending';
`

// QPromoteOrder is the worker's defensive step: ensure a paid order is in
// processing before external work starts. A no-op when already processing;
// matches nothing for unpaid or terminal orders.
const QPromoteOrder = `--sql 7d41e0a8-36c5-4f92-b8d7-50f9c2e6a1b3
update orders
set order_status = 'processing', updated_at = now()
where id = $1::text
  and payment_status = 'paid'
  and order_status in ('pending', 'processing')
returning order_status;
`

const QCompleteOrder = `--sql 38c4e9d1-57af-4b06-92d8-e61b30f5a78c
update orders
set order_status = 'completed', artifact_url = $2::text, updated_at = now()
where id = $1::text
  and order_status = 'processing';
`

const QFailOrder = `--sql ab07d3c2-81e6-4f59-b024-5d9c6e1f38a0
update orders
set order_status = 'failed', error_message = $2::text, updated_at = now()
where id = $1::text
  and order_status in ('pending', 'processing');
`

// QRetryOrder is the administrative failed -> processing transition. It only
// applies to paid orders and hands back the params needed to re-enqueue.
const QRetryOrder = `--sql 40f8b6e5-2d93-4a17-8c60-f35a07d9b1ce
update orders
set order_status = 'processing', error_message = '', updated_at = now()
where id = $1::text
  and order_status = 'failed'
  and payment_status = 'paid'
returning params;
`

const QCancelOrder = `--sql 92d05f7a-c4b1-4e38-a65f-08e7d2c49b16
update orders
set order_status = 'cancelled', updated_at = now()
where id = $1::text
  and order_status in ('pending', 'processing', 'failed');
`

const QCloseOrder = `--sql 6b3e91c0-75d8-4f42-b1a9-3c60e84f25d7
update orders
set order_status = 'closed', updated_at = now()
where id = $1::text
  and order_status in ('completed', 'cancelled');
`
