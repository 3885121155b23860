package sqlinline

const QStatsSummary = `--sql 8d16f4a7-b30c-4d59-82e1-c95a60f7d3b8
select
    (select count(*) from principals),
    (select count(*) from orders where order_status = 'completed'),
    (select count(*) from orders where order_status = 'failed'),
    (select count(*) from tracks where created_at > now() - interval '24 hours'),
    (select count(*) from jobs where status in ('queued', 'running'));
`
